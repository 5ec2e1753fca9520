// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"testing"

	"truthscan/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns an in-memory SQLite database, migrated when migrate is true.
// The pool is pinned to one connection so every query sees the same memory database.
func OpenDB(t testing.TB, migrate bool) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access test database pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if migrate {
		if err := models.AutoMigrate(db); err != nil {
			t.Fatalf("failed to migrate test database: %v", err)
		}
	}
	return db
}

// MigratedDB is OpenDB with migrations applied.
func MigratedDB(t testing.TB) *gorm.DB {
	t.Helper()
	return OpenDB(t, true)
}
