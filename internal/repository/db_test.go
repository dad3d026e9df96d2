package repository

import (
	"testing"

	"github.com/timmy/leadscout/internal/config"
	"gorm.io/gorm"
)

// newTestDB opens an isolated in-memory database with the full schema.
// MaxOpenConns is pinned to 1 so every query sees the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func TestInitDBUnknownDriver(t *testing.T) {
	_, err := InitDB(&config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
