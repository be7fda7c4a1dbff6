package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("no embedded migrations: %v", err)
	}
	for _, f := range files {
		body, err := fs.ReadFile(migrationsFS, f)
		if err != nil {
			t.Fatal(err)
		}
		s := string(body)
		if !strings.Contains(s, "-- +goose Up") || !strings.Contains(s, "-- +goose Down") {
			t.Errorf("%s lacks goose Up/Down sections", f)
		}
	}
	first, _ := fs.ReadFile(migrationsFS, "migrations/00001_init.sql")
	if !strings.Contains(string(first), "ON DELETE CASCADE") {
		t.Error("messages must cascade with their ticket")
	}
}

func TestEnsureDatabaseRejectsMissingName(t *testing.T) {
	if err := ensureDatabase("postgres://u:p@localhost:5432"); err == nil {
		t.Fatal("expected error for url without database name")
	}
}
