// Package dbtest opens throwaway sqlite databases migrated with the real schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/database"
)

// New returns a migrated sqlite database living in t.TempDir
func New(t testing.TB) *database.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
	if err := database.RunMigrations(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
