package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tbourn/go-icp-dashboard/internal/repo"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	return cmd.ExecuteContext(context.Background())
}

func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icp.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func TestMigrate_CreatesSchema(t *testing.T) {
	path := sqliteEnv(t)
	if err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if !db.Migrator().HasTable("idempotency") {
		t.Fatal("idempotency table missing")
	}
}

func TestUserCreate(t *testing.T) {
	path := sqliteEnv(t)
	if err := run(t, "user", "create", "acme", "--password", "pass1234", "--website", "https://acme.io"); err != nil {
		t.Fatalf("user create: %v", err)
	}

	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	u, err := repo.GetUser(context.Background(), db, "acme")
	if err != nil || u.WebsiteURL == "" {
		t.Fatalf("user = %+v, err = %v", u, err)
	}

	err = run(t, "user", "create", "acme", "--password", "pass1234")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("duplicate: %v", err)
	}
	if err := run(t, "user", "create", "bob"); err == nil {
		t.Fatal("missing --password accepted")
	}
}

func TestConfigErrorsSurface(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("RATE_BURST", "0")
	if err := run(t, "migrate"); err == nil || !strings.Contains(err.Error(), "RATE_BURST") {
		t.Fatalf("err = %v", err)
	}
}
