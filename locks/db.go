// Package locks reads the shared instance-lock database that a running
// cline-core process writes once it is serving. The lock row is the sole
// readiness signal for a launched process pair: its presence with a held_by
// value matching the core port means the gRPC address is safe to use.
//
// The schema is owned by cline-core; this package treats it as an opaque,
// externally-defined contract (key: port, presence implies ready) and only
// ever reads it in production. The writer exists for tests and tooling.
package locks

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// InstanceLock is one instance lock row. HeldBy is the serving address of
// the core process ("localhost:<port>" or "127.0.0.1:<port>").
type InstanceLock struct {
	HeldBy     string `db:"held_by"`
	LockTarget string `db:"lock_target"`
	LockedAt   string `db:"locked_at"`
}

const lockSchema = `
CREATE TABLE IF NOT EXISTS locks (
	held_by TEXT NOT NULL,
	lock_type TEXT NOT NULL,
	lock_target TEXT NOT NULL,
	locked_at TEXT NOT NULL
);
`

const getInstanceLockSql = `
SELECT held_by, lock_target, locked_at FROM locks
WHERE held_by = $1 AND lock_type = 'instance';
`

const insertInstanceLockSql = `
INSERT INTO locks (held_by, lock_type, lock_target, locked_at)
VALUES ($1, 'instance', $2, datetime('now'));
`

// DefaultDBPath returns the lock database location under a cline config
// directory.
func DefaultDBPath(configPath string) string {
	return filepath.Join(configPath, "data", "locks.db")
}

// Open connects to the lock database at the given path.
func Open(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open lock database %s: %w", dbPath, err)
	}
	return db, nil
}

// DBInit creates the locks table. Production databases are created by
// cline-core itself; this exists for tests and tooling.
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(lockSchema)
	return err
}

// GetInstanceLock returns the instance lock held by the given address, or
// nil if no such lock exists.
func GetInstanceLock(db *sqlx.DB, heldBy string) (*InstanceLock, error) {
	var lock InstanceLock
	err := db.Get(&lock, getInstanceLockSql, heldBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

// WriteInstanceLock records an instance lock for the given address. Used by
// tests and tooling; the authoritative writer is cline-core.
func WriteInstanceLock(db *sqlx.DB, heldBy, lockTarget string) error {
	_, err := db.Exec(insertInstanceLockSql, heldBy, lockTarget)
	return err
}
