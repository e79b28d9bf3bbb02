package locks

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	// DefaultWaitTimeout bounds how long WaitForInstance polls before
	// giving up.
	DefaultWaitTimeout = 30 * time.Second
	// DefaultPollInterval is the fixed delay between lock database polls.
	DefaultPollInterval = 500 * time.Millisecond
)

// WaitOutcome is the tagged result of a readiness wait.
type WaitOutcome int

const (
	// WaitReady means a matching instance lock appeared within the
	// timeout window.
	WaitReady WaitOutcome = iota
	// WaitTimedOut means the timeout elapsed with no lock record and no
	// process exit.
	WaitTimedOut
	// WaitExited means a monitored process died before readiness was
	// observed.
	WaitExited
)

// String returns a string representation of the WaitOutcome.
func (o WaitOutcome) String() string {
	switch o {
	case WaitReady:
		return "Ready"
	case WaitTimedOut:
		return "TimedOut"
	case WaitExited:
		return "Exited"
	default:
		return "InvalidOutcome"
	}
}

// Liveness reports whether the monitored process pair is still alive. A
// fresh check is made on every poll iteration: a dead process will never
// become ready, so its exit ends the wait immediately.
type Liveness interface {
	BothRunning() bool
}

// WaitForInstance polls the lock database until a lock row matching the
// core port appears, the process pair dies, or the timeout elapses. The
// database not existing yet and transient SQLite errors (the writer holds
// the database locked, for instance) are retried until the deadline; reads
// are idempotent so polling is safe.
//
// The wait blocks the calling goroutine, sleeping between polls. It is
// ended only by readiness, process exit, or timeout expiry; there is no
// mid-wait cancellation.
func WaitForInstance(logger *slog.Logger, dbPath string, corePort int, proc Liveness, timeout, pollInterval time.Duration) (*InstanceLock, WaitOutcome) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ReadinessMonitor")
	if timeout == 0 {
		timeout = DefaultWaitTimeout
	}
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	// cline-core may bind either name; both advertise the same port.
	heldByVariants := []string{
		fmt.Sprintf("localhost:%d", corePort),
		fmt.Sprintf("127.0.0.1:%d", corePort),
	}

	logger.Debug("Waiting for instance lock", "dbPath", dbPath, "port", corePort)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !proc.BothRunning() {
			logger.Warn("Process exited before instance lock appeared", "port", corePort)
			return nil, WaitExited
		}

		lock, err := pollOnce(dbPath, heldByVariants)
		if err != nil {
			logger.Debug("Lock database poll failed, retrying", "error", err)
		} else if lock != nil {
			logger.Debug("Found instance lock", "address", lock.HeldBy, "lockTarget", lock.LockTarget, "lockedAt", lock.LockedAt)
			return lock, WaitReady
		}

		time.Sleep(pollInterval)
	}

	logger.Warn("Timed out waiting for instance lock", "port", corePort, "timeout", timeout)
	return nil, WaitTimedOut
}

// pollOnce performs a single read-only check of the lock database. The
// connection is opened per poll because the database file may not exist
// until cline-core creates it.
func pollOnce(dbPath string, heldByVariants []string) (*InstanceLock, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("lock database not present yet: %w", err)
	}

	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	for _, heldBy := range heldByVariants {
		lock, err := GetInstanceLock(db, heldBy)
		if err != nil {
			return nil, err
		}
		if lock != nil {
			return lock, nil
		}
	}
	return nil, nil
}
