// Package auth provides authentication and authorisation for shellyd.
//
// It implements a 2-tier role model (user → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Signed JWT session tokens (stateless, no database lookup per request)
//   - Explicit per-user room grants controlling dashboard visibility
//   - Static role-permission mapping (compile-time, no database lookup)
//
// Room scoping uses a "zero access by default, grant explicitly" model:
// a user with no room grants sees an empty dashboard. An admin must
// deliberately grant access to specific rooms via user_room_access.
// The admin role bypasses room scoping entirely, but new admin accounts
// still get a grant snapshot of the current room set so revoking the
// role later leaves them with a sensible baseline.
package auth
