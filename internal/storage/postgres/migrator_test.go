package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrationFilename(t *testing.T) {
	t.Parallel()

	parsed, err := parseMigrationFilename("sql/migrations/0012_add_stock_batches.up.sql")
	if err != nil {
		t.Fatalf("parseMigrationFilename failed: %v", err)
	}
	if parsed.version != 12 || parsed.name != "add_stock_batches" || parsed.direction != "up" {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}

	for _, bad := range []string{
		"sql/migrations/no_version.sql",
		"sql/migrations/0001_init.sideways.sql",
		"sql/migrations/0001-init.up.sql",
	} {
		if _, err := parseMigrationFilename(bad); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestLoadMigrationsFromFS_Success(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_ledger.up.sql": {
			Data: []byte("CREATE TABLE test_b (id INT);"),
		},
		"sql/migrations/0002_ledger.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test_b;"),
		},
		"sql/migrations/0001_orders.up.sql": {
			Data: []byte("CREATE TABLE test_a (id INT);"),
		},
		"sql/migrations/0001_orders.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test_a;"),
		},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	if err != nil {
		t.Fatalf("loadMigrationsFromFS failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}

	// Порядок по версии независимо от порядка файлов.
	if migrations[0].version != 1 || migrations[0].name != "orders" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].version != 2 || migrations[1].name != "ledger" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestLoadMigrationsFromFS_MissingDown(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_orders.up.sql": {
			Data: []byte("CREATE TABLE test_a (id INT);"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "both up and down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrationsFromFS_DuplicateAndMismatch(t *testing.T) {
	t.Parallel()

	_, err := loadMigrationsFromFS(fstest.MapFS{
		"sql/migrations/0001_orders.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/migrations/0001_ledger.down.sql": {Data: []byte("SELECT 1;")},
	})
	if err == nil || !strings.Contains(err.Error(), "name mismatch") {
		t.Fatalf("expected name mismatch error, got: %v", err)
	}
}

func TestLoadMigrationsFromFS_EmptyFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_orders.up.sql": {
			Data: []byte("   \n"),
		},
		"sql/migrations/0001_orders.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS test;"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for empty migration file body")
	}
}

func TestEmbeddedMigrationsAreComplete(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		t.Fatalf("embedded migrations failed to load: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(migrations))
	}

	if migrations[0].name != "core_tables" {
		t.Fatalf("unexpected first embedded migration: %+v", migrations[0])
	}
	if !strings.Contains(migrations[0].upSQL, "orders") {
		t.Fatal("core tables migration must create orders")
	}
}
