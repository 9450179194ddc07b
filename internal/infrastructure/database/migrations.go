package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Embedded migrations are registered by the migrations package at init
// time, which keeps this package free of a dependency on the module
// root. Filenames follow YYYYMMDD_HHMMSS_description.up.sql, with an
// optional matching .down.sql for rollback.
var (
	MigrationsFS  embed.FS
	MigrationsDir = "migrations"
)

// migration is one versioned schema step.
type migration struct {
	version string // YYYYMMDD_HHMMSS
	name    string
	up      string
	down    string
}

// Migrate applies every migration not yet recorded in schema_migrations,
// oldest first. Each migration runs in its own transaction: a failing
// step rolls back alone and leaves earlier steps committed, so rerunning
// Migrate after a fix continues where it stopped.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	all, err := readMigrations()
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range all {
		if done[m.version] {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. Meant for
// development databases; a migration without down SQL cannot be rolled
// back.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	all, err := readMigrations()
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var target *migration
	for i := range all {
		if all[i].version == latest {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s is applied but missing from the embedded set", latest)
	}
	if target.down == "" {
		return fmt.Errorf("migration %s has no down SQL", latest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rollback transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, target.down); err != nil {
		return fmt.Errorf("executing down SQL for %s: %w", latest, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", latest); err != nil {
		return fmt.Errorf("removing migration record %s: %w", latest, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollback: %w", err)
	}
	return nil
}

// apply runs one migration and records it, atomically.
func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		return fmt.Errorf("executing up SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// appliedVersions returns the recorded migration versions, oldest first.
func (db *DB) appliedVersions(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating applied migrations: %w", err)
	}
	return versions, nil
}

// readMigrations loads the embedded migration files, pairing up and down
// scripts by version. Files that don't match the naming scheme are
// ignored.
func readMigrations() ([]migration, error) {
	var unset embed.FS
	if MigrationsFS == unset {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil
	}

	byVersion := make(map[string]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		base, ok := strings.CutSuffix(filename, ".sql")
		if !ok {
			continue
		}
		up := true
		if trimmed, isDown := strings.CutSuffix(base, ".down"); isDown {
			base, up = trimmed, false
		} else if trimmed, isUp := strings.CutSuffix(base, ".up"); isUp {
			base = trimmed
		} else {
			continue
		}

		// YYYYMMDD_HHMMSS_description
		parts := strings.SplitN(base, "_", 3)
		if len(parts) < 3 {
			continue
		}
		version := parts[0] + "_" + parts[1]

		text, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, filename))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filename, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version, name: parts[2]}
			byVersion[version] = m
		}
		if up {
			m.up = string(text)
		} else {
			m.down = string(text)
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
