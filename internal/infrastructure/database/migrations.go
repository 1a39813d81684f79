package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"time"
)

// MigrationsFS holds the schema files, registered by the migrations
// package. Files live in MigrationsDir/<dialect>/ and are named
// <YYYYMMDD_HHMMSS>_<name>.<up|down>.sql.
var MigrationsFS fs.FS

// MigrationsDir is the root of the per-dialect directories in
// MigrationsFS.
var MigrationsDir = "migrations"

var (
	// ErrChecksumMismatch is returned when an applied migration's file
	// no longer matches what was applied.
	ErrChecksumMismatch = errors.New("database: applied migration was modified")

	// ErrNoDownMigration is returned by MigrateDown when the latest
	// migration cannot be reverted.
	ErrNoDownMigration = errors.New("database: migration has no down file")
)

// migrationLockID keys the PostgreSQL advisory lock serialising
// concurrent migrators.
const migrationLockID = 0x6772_7477 // "grtw"

var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_(\w+)\.(up|down)\.sql$`)

// Migration is one versioned schema change.
type Migration struct {
	Version  string
	Name     string
	Up       string
	Down     string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   string
	Checksum  string
	AppliedAt time.Time
}

// MigrationStatus splits the known migrations into applied and pending.
type MigrationStatus struct {
	Applied []AppliedMigration
	Pending []Migration
}

// Migrate applies every pending migration, oldest first, each in its
// own transaction. A failure leaves earlier migrations committed, so a
// rerun continues where it stopped. Applied migrations whose file has
// changed abort the run with ErrChecksumMismatch.
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	for _, m := range status.Pending {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the most recently applied migration. It is a
// no-op when nothing is applied.
func (db *DB) MigrateDown(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	if len(status.Applied) == 0 {
		return nil
	}
	latest := status.Applied[len(status.Applied)-1]

	known, err := loadMigrations(db.dialect)
	if err != nil {
		return err
	}
	m, ok := known[latest.Version]
	if !ok || m.Down == "" {
		return fmt.Errorf("%w: %s", ErrNoDownMigration, latest.Version)
	}

	return db.inMigrationTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			return fmt.Errorf("reverting %s: %w", m.Version, err)
		}
		_, err := tx.ExecContext(ctx, db.Rebind(`DELETE FROM schema_migrations WHERE version = ?`), m.Version)
		return err
	})
}

// MigrationStatus compares the migration files with schema_migrations,
// creating the table when missing.
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return MigrationStatus{}, err
	}
	known, err := loadMigrations(db.dialect)
	if err != nil {
		return MigrationStatus{}, err
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}

	var status MigrationStatus
	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
		// Rows written without a checksum are trusted.
		if m, ok := known[a.Version]; ok && a.Checksum != "" && a.Checksum != m.Checksum {
			return MigrationStatus{}, fmt.Errorf("%w: %s_%s", ErrChecksumMismatch, m.Version, m.Name)
		}
		status.Applied = append(status.Applied, a)
	}
	for _, m := range sortedMigrations(known) {
		if !done[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

func (db *DB) ensureMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		checksum   TEXT NOT NULL DEFAULT '',
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

func (db *DB) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, checksum, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var (
			a  AppliedMigration
			at string
		)
		if err := rows.Scan(&a.Version, &a.Checksum, &at); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, at) //nolint:errcheck
		out = append(out, a)
	}
	return out, rows.Err()
}

// apply runs one migration. Another migrator may have applied it while
// this one waited for the lock, in which case it is skipped.
func (db *DB) apply(ctx context.Context, m Migration) error {
	return db.inMigrationTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), m.Version,
		).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			db.Rebind(`INSERT INTO schema_migrations (version, checksum, applied_at) VALUES (?, ?, ?)`),
			m.Version, m.Checksum, time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
}

// inMigrationTx runs fn in a transaction. On PostgreSQL the transaction
// first takes the migration advisory lock.
func (db *DB) inMigrationTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if db.dialect == DialectPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("acquiring migration lock: %w", err)
		}
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// loadMigrations reads the files for dialect d keyed by version. A
// missing directory yields no migrations.
func loadMigrations(d Dialect) (map[string]Migration, error) {
	out := map[string]Migration{}
	if MigrationsFS == nil {
		return out, nil
	}
	dir := path.Join(MigrationsDir, string(d))
	entries, err := fs.ReadDir(MigrationsFS, dir)
	if err != nil {
		return out, nil
	}

	for _, e := range entries {
		version, name, up, ok := parseMigrationFilename(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		body, err := fs.ReadFile(MigrationsFS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		m := out[version]
		m.Version = version
		if up {
			m.Name = name
			m.Up = string(body)
			sum := sha256.Sum256(body)
			m.Checksum = hex.EncodeToString(sum[:])
		} else {
			m.Down = string(body)
		}
		out[version] = m
	}

	for v, m := range out {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", v)
		}
	}
	return out, nil
}

// parseMigrationFilename splits "20260301_090000_create_shells.up.sql"
// into its version, name and direction.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	m := migrationFile.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false, false
	}
	return m[1], m[2], m[3] == "up", true
}

func sortedMigrations(known map[string]Migration) []Migration {
	out := make([]Migration, 0, len(known))
	for _, m := range known {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}
