package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash reports a stored credential that is not a valid
// argon2id PHC string.
var ErrMalformedHash = errors.New("malformed password hash")

// Password hashing parameters for argon2id, sized per the OWASP
// guidance: 64 MiB memory, 3 passes, a single lane.
const (
	hashMemoryKiB  = 64 * 1024
	hashPasses     = 3
	hashLanes      = 1
	hashLength     = 32
	hashSaltLength = 16
)

// HashPassword derives an argon2id digest and encodes it as a PHC
// string, $argon2id$v=19$m=65536,t=3,p=1$<salt>$<digest>. The parameters
// travel with the credential, so they can be raised later without
// invalidating hashes already stored.
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, hashPasses, hashMemoryKiB, hashLanes, hashLength)

	var b strings.Builder
	fmt.Fprintf(&b, "$argon2id$v=%d$m=%d,t=%d,p=%d$",
		argon2.Version, hashMemoryKiB, hashPasses, hashLanes)
	b.WriteString(base64.RawStdEncoding.EncodeToString(salt))
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(digest))
	return b.String(), nil
}

// VerifyPassword re-derives the digest with the parameters carried in
// the stored hash and compares in constant time.
func VerifyPassword(password, stored string) (bool, error) {
	memory, passes, lanes, salt, digest, err := parseStoredHash(stored)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, passes, memory, lanes, uint32(len(digest))) //nolint:gosec // digest length fits uint32
	return subtle.ConstantTimeCompare(digest, candidate) == 1, nil
}

// parseStoredHash splits a PHC argon2id string into parameters, salt and
// digest. Hashes from other algorithms or argon2 versions are rejected.
func parseStoredHash(stored string) (memory, passes uint32, lanes uint8, salt, digest []byte, err error) {
	fields := strings.Split(stored, "$")
	if len(fields) != 6 || fields[0] != "" {
		err = fmt.Errorf("%w: want $-delimited PHC fields", ErrMalformedHash)
		return
	}
	if fields[1] != "argon2id" {
		err = fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
		return
	}

	var version int
	if _, scanErr := fmt.Sscanf(fields[2], "v=%d", &version); scanErr != nil || version != argon2.Version {
		err = fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
		return
	}
	if _, scanErr := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &memory, &passes, &lanes); scanErr != nil {
		err = fmt.Errorf("%w: parameters %q", ErrMalformedHash, fields[3])
		return
	}

	if salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		err = fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
		return
	}
	if digest, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		err = fmt.Errorf("%w: digest: %v", ErrMalformedHash, err)
		return
	}
	return memory, passes, lanes, salt, digest, nil
}
