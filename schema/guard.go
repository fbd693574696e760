package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viant/sqlite-docstore/pool"
)

// VersionError reports a table whose recorded schema version is missing or
// does not match Version.
type VersionError struct {
	Table    string
	Stored   int
	Recorded bool
	Expected int
}

func (e *VersionError) Error() string {
	if !e.Recorded {
		return fmt.Sprintf("schema: the schema versions of the database (NO version number) and the store (version %d) do not match for table %s. Please migrate your data to the latest version", e.Expected, e.Table)
	}
	return fmt.Sprintf("schema: the schema versions of the database (version %d) and the store (version %d) do not match for table %s. Please migrate your data to the latest version or use a store with a matching schema version", e.Stored, e.Expected, e.Table)
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TableExists reports whether a table called name exists.
func TableExists(ctx context.Context, q Queryer, name string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`,
		name,
	).Scan(&exists)
	return exists, err
}

// CreateTable runs the statements of TableDDL(name).
func CreateTable(ctx context.Context, e Execer, name string) error {
	for _, stmt := range TableDDL(name) {
		if _, err := e.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: create %s: %w", name, err)
		}
	}
	return nil
}

// Guard gates access to a managed table on its recorded schema version.
type Guard struct {
	pool    *pool.Pool
	table   string
	version int
}

// NewGuard returns a guard for table expecting Version.
func NewGuard(p *pool.Pool, table string) *Guard {
	return &Guard{pool: p, table: table, version: Version}
}

// Ensure creates the registry if needed, then either creates table and
// records its version atomically, or verifies the version already recorded.
// A missing or mismatching version yields *VersionError. Ensure is idempotent
// for a correctly versioned table.
func (g *Guard) Ensure(ctx context.Context) error {
	if !ValidIdentifier(g.table) {
		return fmt.Errorf("schema: invalid table name %q", g.table)
	}
	if err := g.pool.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, RegistryDDL())
		return err
	}); err != nil {
		return fmt.Errorf("schema: create registry: %w", err)
	}
	return g.pool.Tx(ctx, func(tx *sql.Tx) error {
		// take the write lock first so concurrent initializers serialize
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+RegistryTable+` WHERE 0`); err != nil {
			return err
		}
		exists, err := TableExists(ctx, tx, g.table)
		if err != nil {
			return fmt.Errorf("schema: check table %s: %w", g.table, err)
		}
		if !exists {
			if err := CreateTable(ctx, tx, g.table); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+RegistryTable+` (table_name, schema_version) VALUES (?, ?)`,
				g.table, g.version,
			); err != nil {
				return fmt.Errorf("schema: register %s: %w", g.table, err)
			}
		}
		return g.check(ctx, tx)
	})
}

func (g *Guard) check(ctx context.Context, q Queryer) error {
	stored, recorded, err := StoredVersion(ctx, q, g.table)
	if err != nil {
		return err
	}
	if !recorded || stored != g.version {
		return &VersionError{Table: g.table, Stored: stored, Recorded: recorded, Expected: g.version}
	}
	return nil
}

// StoredVersion returns the registry entry of table; recorded is false when
// there is none.
func StoredVersion(ctx context.Context, q Queryer, table string) (version int, recorded bool, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT schema_version FROM `+RegistryTable+` WHERE table_name = ?`,
		table,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("schema: read version of %s: %w", table, err)
	}
	return version, true, nil
}
