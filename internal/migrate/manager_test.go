package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun/driver/sqliteshim"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newManager(t *testing.T) (*Manager, *sql.DB, string, string) {
	t.Helper()
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	migDir := t.TempDir()
	seedDir := t.TempDir()
	return NewManager(db, migDir, seedDir), db, migDir, seedDir
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	mgr, db, migDir, _ := newManager(t)
	ctx := context.Background()

	writeFile(t, migDir, "0002_add_col.up.sql", "alter table things add column extra text;")
	writeFile(t, migDir, "0001_create.up.sql", "create table things (id integer primary key, name text);")

	if err := mgr.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}

	if _, err := db.ExecContext(ctx, "insert into things (name, extra) values ('a', 'b')"); err != nil {
		t.Fatalf("schema incomplete after up: %v", err)
	}

	history, err := mgr.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(history) != 2 || history[0] != "0001_create.up.sql" {
		t.Fatalf("unexpected history: %v", history)
	}

	// Re-running applies nothing new.
	if err := mgr.Up(ctx); err != nil {
		t.Fatalf("second up: %v", err)
	}
	history, err = mgr.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("up is not idempotent: %v", history)
	}
}

func TestDownRollsBackLastMigration(t *testing.T) {
	mgr, db, migDir, _ := newManager(t)
	ctx := context.Background()

	writeFile(t, migDir, "0001_create.up.sql", "create table things (id integer primary key);")
	writeFile(t, migDir, "0001_create.down.sql", "drop table things;")

	if err := mgr.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := mgr.Down(ctx); err != nil {
		t.Fatalf("down: %v", err)
	}
	if _, err := db.ExecContext(ctx, "insert into things (id) values (1)"); err == nil {
		t.Fatal("expected table dropped after down")
	}

	history, err := mgr.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history after down, got %v", history)
	}

	if err := mgr.Down(ctx); err == nil {
		t.Fatal("expected error when nothing to roll back")
	}
}

func TestDownRequiresCounterpartFile(t *testing.T) {
	mgr, _, migDir, _ := newManager(t)
	ctx := context.Background()

	writeFile(t, migDir, "0001_create.up.sql", "create table things (id integer primary key);")
	if err := mgr.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := mgr.Down(ctx); err == nil {
		t.Fatal("expected missing down migration error")
	}
}

func TestSeedIdempotent(t *testing.T) {
	mgr, db, migDir, seedDir := newManager(t)
	ctx := context.Background()

	writeFile(t, migDir, "0001_create.up.sql", "create table lookups (name text);")
	writeFile(t, seedDir, "0001_lookups.sql", "insert into lookups (name) values ('x'); insert into lookups (name) values ('y');")

	if err := mgr.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := mgr.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := mgr.Seed(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "select count(*) from lookups").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("seed ran twice: %d rows", count)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	mgr, db, migDir, _ := newManager(t)
	ctx := context.Background()

	writeFile(t, migDir, "0001_bad.up.sql",
		"create table things (id integer primary key); insert into nowhere values (1);")

	if err := mgr.Up(ctx); err == nil {
		t.Fatal("expected failing migration to error")
	}
	// The create from the same file must not survive.
	if _, err := db.ExecContext(ctx, "insert into things (id) values (1)"); err == nil {
		t.Fatal("expected partial migration rolled back")
	}
}

func TestSplitStatementsRespectsStrings(t *testing.T) {
	stmts := splitStatements("insert into t values ('a;b'); select 1;")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
}
