package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// ErrMigrationChanged is returned when an applied migration file no longer
// matches the checksum recorded when it ran.
var ErrMigrationChanged = errors.New("database: applied migration was modified")

// Migration is one schema change, read from a file named
// NNNN_description.sql. Files are applied in ascending NNNN order.
type Migration struct {
	Seq      int
	Name     string
	SQL      string
	Checksum string
}

// MigrationState pairs a migration with when it was applied. AppliedAt is
// zero for pending migrations.
type MigrationState struct {
	Migration
	AppliedAt time.Time
}

// Pending reports whether the migration has not run yet.
func (s MigrationState) Pending() bool {
	return s.AppliedAt.IsZero()
}

type appliedRow struct {
	checksum string
	at       time.Time
}

const schemaTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	seq        INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`

// Migrate runs every pending migration of fsys in its own transaction.
// It stops at the first failure; migrations before it stay applied.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	states, err := db.Migrations(ctx, fsys)
	if err != nil {
		return err
	}
	for _, s := range states {
		if !s.Pending() {
			continue
		}
		if err := db.run(ctx, s.Migration); err != nil {
			return fmt.Errorf("migration %04d %s: %w", s.Seq, s.Name, err)
		}
	}
	return nil
}

// Migrations lists the migrations of fsys with their applied state. An
// applied migration whose file has since changed yields ErrMigrationChanged.
func (db *DB) Migrations(ctx context.Context, fsys fs.FS) ([]MigrationState, error) {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	files, err := ReadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	applied, err := db.applied(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(files))
	for _, m := range files {
		s := MigrationState{Migration: m}
		if row, ok := applied[m.Seq]; ok {
			if row.checksum != m.Checksum {
				return nil, fmt.Errorf("%w: %04d %s", ErrMigrationChanged, m.Seq, m.Name)
			}
			s.AppliedAt = row.at
		}
		states = append(states, s)
	}
	return states, nil
}

func (db *DB) applied(ctx context.Context) (map[int]appliedRow, error) {
	rows, err := db.QueryContext(ctx, "SELECT seq, checksum, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]appliedRow)
	for rows.Next() {
		var (
			seq   int
			row   appliedRow
			stamp string
		)
		if err := rows.Scan(&seq, &row.checksum, &stamp); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		if row.at, err = time.Parse(time.RFC3339, stamp); err != nil {
			return nil, fmt.Errorf("migration %04d: bad applied_at %q", seq, stamp)
		}
		out[seq] = row
	}
	return out, rows.Err()
}

func (db *DB) run(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (seq, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
		m.Seq, m.Name, m.Checksum, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ReadMigrations loads the *.sql files at the root of fsys in sequence
// order. Other files are ignored. A nil fsys holds no migrations.
func ReadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	var out []Migration
	seen := make(map[int]string)
	for _, file := range names {
		seq, name, ok := splitMigrationName(file)
		if !ok {
			continue
		}
		if prev, dup := seen[seq]; dup {
			return nil, fmt.Errorf("migrations %s and %s share sequence %04d", prev, file, seq)
		}
		seen[seq] = file

		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{
			Seq:      seq,
			Name:     name,
			SQL:      string(body),
			Checksum: strconv.FormatUint(xxh3.Hash(body), 16),
		})
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Seq - b.Seq })
	return out, nil
}

// splitMigrationName parses NNNN_description.sql.
func splitMigrationName(file string) (seq int, name string, ok bool) {
	base, found := strings.CutSuffix(file, ".sql")
	if !found {
		return 0, "", false
	}
	digits, name, _ := strings.Cut(base, "_")
	seq, err := strconv.Atoi(digits)
	if err != nil || seq <= 0 {
		return 0, "", false
	}
	return seq, name, true
}
