package database_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tokocart/internal/database"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", fmt.Errorf("wrapped: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, database.IsRetryable(tc.err))
		})
	}
}

func TestLockTimeoutStatement(t *testing.T) {
	assert.Equal(t, "SET LOCAL lock_timeout = '5000ms'", database.LockTimeoutStatement("postgres", 5*time.Second))
	assert.Equal(t, "SET SESSION innodb_lock_wait_timeout = 2", database.LockTimeoutStatement("mysql", 1500*time.Millisecond))
	assert.Equal(t, "SET SESSION innodb_lock_wait_timeout = 1", database.LockTimeoutStatement("mysql", 10*time.Millisecond))
	assert.Empty(t, database.LockTimeoutStatement("sqlite", time.Second))
	assert.Empty(t, database.LockTimeoutStatement("postgres", 0))
}

func TestLockTimeoutResetStatement(t *testing.T) {
	assert.Equal(t, "SET SESSION innodb_lock_wait_timeout = DEFAULT", database.LockTimeoutResetStatement("mysql", time.Second))
	assert.Empty(t, database.LockTimeoutResetStatement("mysql", 0))
	assert.Empty(t, database.LockTimeoutResetStatement("postgres", time.Second))
	assert.Empty(t, database.LockTimeoutResetStatement("sqlite", time.Second))
}
