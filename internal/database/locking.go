package database

import (
	"fmt"
	"math"
	"time"
)

// LockTimeoutStatement returns the statement that bounds row-lock waits for
// the rest of the current transaction, or "" when the dialect has no such
// setting (SQLite relies on its busy timeout instead).
//
// MySQL has no transaction-scoped variant, so the MySQL statement changes
// the session and outlives the transaction on the pooled connection. Run
// LockTimeoutResetStatement before the transaction ends to undo it.
func LockTimeoutStatement(dialect string, d time.Duration) string {
	if d <= 0 {
		return ""
	}
	switch dialect {
	case "postgres":
		return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())
	case "mysql":
		secs := int(math.Ceil(d.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)
	default:
		return ""
	}
}

// LockTimeoutResetStatement returns the statement that restores the
// server default after LockTimeoutStatement, or "" when nothing leaks past
// the transaction.
func LockTimeoutResetStatement(dialect string, d time.Duration) string {
	if d <= 0 || dialect != "mysql" {
		return ""
	}
	return "SET SESSION innodb_lock_wait_timeout = DEFAULT"
}
