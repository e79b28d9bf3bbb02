package locks

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

// setupTestDB creates a temporary lock database with the schema applied.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "locks.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := DBInit(db); err != nil {
		t.Fatalf("DBInit returned error: %v", err)
	}
	return db
}

func TestDBInit(t *testing.T) {
	db := setupTestDB(t)

	var tableName string
	err := db.Get(&tableName, "SELECT name FROM sqlite_master WHERE type='table' AND name='locks'")
	if err != nil {
		t.Fatalf("Table 'locks' does not exist: %v", err)
	}

	// Columns must carry TEXT affinity so address values round-trip
	// byte-for-byte.
	var colType string
	err = db.Get(&colType, "SELECT type FROM pragma_table_info('locks') WHERE name='held_by'")
	if err != nil {
		t.Fatalf("Failed to query column type: %v", err)
	}
	if colType != "TEXT" {
		t.Errorf("Expected held_by column type TEXT, got %q", colType)
	}
}

func TestGetInstanceLockMissing(t *testing.T) {
	db := setupTestDB(t)

	lock, err := GetInstanceLock(db, "localhost:12345")
	if err != nil {
		t.Fatalf("GetInstanceLock returned error: %v", err)
	}
	if lock != nil {
		t.Fatalf("Expected nil lock, got %+v", lock)
	}
}

func TestWriteAndGetInstanceLock(t *testing.T) {
	db := setupTestDB(t)

	if err := WriteInstanceLock(db, "localhost:12345", "task-xyz"); err != nil {
		t.Fatalf("WriteInstanceLock returned error: %v", err)
	}

	lock, err := GetInstanceLock(db, "localhost:12345")
	if err != nil {
		t.Fatalf("GetInstanceLock returned error: %v", err)
	}
	if lock == nil {
		t.Fatal("Expected lock, got nil")
	}
	if lock.HeldBy != "localhost:12345" {
		t.Errorf("Expected held_by 'localhost:12345', got %q", lock.HeldBy)
	}
	if lock.LockTarget != "task-xyz" {
		t.Errorf("Expected lock_target 'task-xyz', got %q", lock.LockTarget)
	}
	if lock.LockedAt == "" {
		t.Error("Expected non-empty locked_at")
	}
}

func TestGetInstanceLockIgnoresOtherLockTypes(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec(`INSERT INTO locks (held_by, lock_type, lock_target, locked_at)
		VALUES ('localhost:12345', 'file', 'something', datetime('now'))`)
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	lock, err := GetInstanceLock(db, "localhost:12345")
	if err != nil {
		t.Fatalf("GetInstanceLock returned error: %v", err)
	}
	if lock != nil {
		t.Fatalf("Expected nil lock for non-instance lock type, got %+v", lock)
	}
}

func TestDefaultDBPath(t *testing.T) {
	path := DefaultDBPath("/home/user/.cline")
	expected := filepath.Join("/home/user/.cline", "data", "locks.db")
	if path != expected {
		t.Errorf("Expected %q, got %q", expected, path)
	}
}
