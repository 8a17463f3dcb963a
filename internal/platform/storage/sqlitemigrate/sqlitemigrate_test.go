package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestApplyMigrationsRunsOnce(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"001_dossiers.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE dossier_rows(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE dossier_rows;"),
		},
	}

	if err := ApplyMigrations(db, migrations, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if !tableExists(t, db, "dossier_rows") {
		t.Fatal("expected migrated table")
	}

	// Second run must be a no-op.
	if err := ApplyMigrations(db, migrations, ""); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
	if got := queryInt64(t, db, "SELECT COUNT(1) FROM schema_migrations"); got != 1 {
		t.Fatalf("expected one recorded migration, got %d", got)
	}
}

func TestApplyMigrationsOrdersFiles(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"002_add_column.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nALTER TABLE policy_rows ADD COLUMN status TEXT;"),
		},
		"001_policies.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE policy_rows(id TEXT PRIMARY KEY);"),
		},
	}

	if err := ApplyMigrations(db, migrations, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if got := queryInt64(t, db, "SELECT COUNT(1) FROM schema_migrations"); got != 2 {
		t.Fatalf("expected two recorded migrations, got %d", got)
	}
}

func TestApplyMigrationsRespectsRoot(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"clients/001_init.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE employes(id TEXT PRIMARY KEY);"),
		},
	}

	if err := ApplyMigrations(db, migrations, "clients"); err != nil {
		t.Fatalf("apply migrations with root: %v", err)
	}
	key := queryString(t, db, "SELECT name FROM schema_migrations LIMIT 1")
	if key != "clients/001_init.sql" {
		t.Fatalf("expected root-qualified migration key, got %q", key)
	}
}

func TestExtractUpMigration(t *testing.T) {
	t.Parallel()

	content := "-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;"
	up := ExtractUpMigration(content)
	if up != "\nCREATE TABLE a(x);\n" {
		t.Fatalf("unexpected up section %q", up)
	}

	plain := "CREATE TABLE b(y);"
	if ExtractUpMigration(plain) != plain {
		t.Fatal("expected unmarked content returned as-is")
	}
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func queryString(t *testing.T, db *sql.DB, query string) string {
	t.Helper()
	var value string
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query string value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	row := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName)
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false
		}
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
