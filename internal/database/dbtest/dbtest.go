// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"tokocart/internal/config"
	"tokocart/internal/database"

	"gorm.io/gorm"
)

// DSN returns a file-backed SQLite DSN under dir. BEGIN takes the write lock
// immediately and waiters block on the busy timeout, so concurrent write
// transactions serialize the way row locks make them serialize elsewhere.
func DSN(dir string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_foreign_keys=1&_journal_mode=WAL",
		filepath.Join(dir, "toko.db"))
}

// Config returns a valid SQLite configuration rooted at a temp dir of t.
func Config(t testing.TB) *config.Config {
	t.Helper()
	return &config.Config{
		AppPort:              ":0",
		DatabaseDriver:       config.DriverSQLite,
		DatabaseDSN:          DSN(t.TempDir()),
		DBMaxOpenConns:       8,
		JWTSecret:            "test_jwt_secret",
		CheckoutMaxAttempts:  5,
		CheckoutRetryBackoff: 0,
		RabbitMQExchange:     "order",
		LogLevel:             "error",
	}
}

// Open returns a migrated database that is closed when t finishes.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(Config(t))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(db); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})
	return db
}
