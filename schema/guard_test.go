package schema

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/viant/sqlite-docstore/engine"
	"github.com/viant/sqlite-docstore/pool"
)

func newPool(t *testing.T) *pool.Pool {
	t.Helper()
	db, err := engine.OpenFile(filepath.Join(t.TempDir(), "schema.sqlite"), engine.Options{BusyTimeout: 5 * time.Second, WAL: true})
	if err != nil {
		t.Fatalf("engine.OpenFile failed: %v", err)
	}
	p, err := pool.New(db, pool.Options{MaxConnections: 2, AcquireTimeout: time.Second})
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// TestEnsureCreatesTable verifies that Ensure creates the table and records
// its version in the registry on a fresh database.
func TestEnsureCreatesTable(t *testing.T) {
	ctx := context.Background()
	p := newPool(t)

	if err := NewGuard(p, "docs").Ensure(ctx); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	exists, err := TableExists(ctx, p.DB(), "docs")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected table docs to exist")
	}
	v, recorded, err := StoredVersion(ctx, p.DB(), "docs")
	if err != nil {
		t.Fatalf("StoredVersion failed: %v", err)
	}
	if !recorded || v != Version {
		t.Fatalf("StoredVersion = %d (recorded=%v), want %d", v, recorded, Version)
	}

	// Sanity check: the layout accepts a row.
	if _, err := p.DB().Exec(`INSERT INTO docs(doc_id, embedding, doc, shard, last_updated) VALUES('1', NULL, X'00', 0, 1)`); err != nil {
		t.Fatalf("insert into docs failed: %v", err)
	}
}

// TestEnsureIdempotent verifies that a second Ensure is a no-op.
func TestEnsureIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newPool(t)
	g := NewGuard(p, "docs")
	if err := g.Ensure(ctx); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if _, err := p.DB().Exec(`INSERT INTO docs(doc_id, doc, shard, last_updated) VALUES('1', X'00', 0, 1)`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := g.Ensure(ctx); err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	var rows, registry int
	if err := p.DB().QueryRow(`SELECT COUNT(*) FROM docs`).Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if err := p.DB().QueryRow(`SELECT COUNT(*) FROM schema_versions`).Scan(&registry); err != nil {
		t.Fatalf("count registry failed: %v", err)
	}
	if rows != 1 || registry != 1 {
		t.Fatalf("rows=%d registry=%d, want 1 and 1", rows, registry)
	}
}

func TestEnsureVersionMismatch(t *testing.T) {
	ctx := context.Background()
	p := newPool(t)
	if err := NewGuard(p, "docs").Ensure(ctx); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if _, err := p.DB().Exec(`UPDATE schema_versions SET schema_version = 1 WHERE table_name = 'docs'`); err != nil {
		t.Fatalf("update registry failed: %v", err)
	}

	err := NewGuard(p, "docs").Ensure(ctx)
	var verr *VersionError
	if !errors.As(err, &verr) {
		t.Fatalf("Ensure error = %v, want *VersionError", err)
	}
	if verr.Stored != 1 || verr.Expected != Version || !verr.Recorded {
		t.Fatalf("unexpected VersionError: %+v", verr)
	}
	msg := err.Error()
	if !strings.Contains(msg, "version 1") || !strings.Contains(msg, "version 2") || !strings.Contains(msg, "migrate") {
		t.Fatalf("message must name both versions and ask for migration: %s", msg)
	}
}

func TestEnsureMissingRegistryRow(t *testing.T) {
	ctx := context.Background()
	p := newPool(t)
	for _, stmt := range TableDDL("legacy") {
		if _, err := p.DB().Exec(stmt); err != nil {
			t.Fatalf("create legacy failed: %v", err)
		}
	}

	err := NewGuard(p, "legacy").Ensure(ctx)
	var verr *VersionError
	if !errors.As(err, &verr) {
		t.Fatalf("Ensure error = %v, want *VersionError", err)
	}
	if verr.Recorded {
		t.Fatalf("expected unrecorded version, got %+v", verr)
	}
	if !strings.Contains(err.Error(), "NO version number") {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestEnsureRejectsInvalidName(t *testing.T) {
	if err := NewGuard(newPool(t), "docs; DROP TABLE x").Ensure(context.Background()); err == nil {
		t.Fatal("expected error for invalid table name")
	}
}

func TestValidIdentifier(t *testing.T) {
	for name, want := range map[string]bool{"docs": true, "_x1": true, "1docs": false, "a-b": false, "": false, "a.b": false} {
		if got := ValidIdentifier(name); got != want {
			t.Errorf("ValidIdentifier(%q) = %v, want %v", name, got, want)
		}
	}
}
