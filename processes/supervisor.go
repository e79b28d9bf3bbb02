package processes

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultGracefulShutdownPeriod = 10 * time.Second

// ProcessSpec describes one subprocess launch. It is immutable once handed
// to Launch and owned by the Supervisor for the lifetime of that launch.
type ProcessSpec struct {
	Path string   // Executable to run.
	Args []string // Arguments, not including the executable name.
	Dir  string   // Working directory; empty means inherit.
	Env  []string // Environment; nil means inherit.
	// Output receives the combined stdout/stderr of the subprocess. When
	// nil the streams are discarded. The streams are never left as unread
	// pipes, which would deadlock the child once the pipe buffer fills.
	Output io.Writer
}

// managedProcess tracks one running subprocess and its exit state. The exit
// is observed by a dedicated watcher goroutine so that liveness checks never
// block on Wait.
type managedProcess struct {
	name string
	cmd  *exec.Cmd

	waitDone chan struct{} // Closed once Wait has returned.

	mu      sync.Mutex
	exited  bool
	exitErr error
}

func (p *managedProcess) watch() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exited = true
	p.exitErr = err
	p.mu.Unlock()
	close(p.waitDone)
}

// running reports whether the process has been started and has not yet
// exited. It never blocks.
func (p *managedProcess) running() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited
}

// Supervisor launches, monitors and terminates the host and core processes
// as a single coupled unit. The host is started first; termination happens
// in reverse order so the host never observes an abrupt core disconnect it
// would treat as a crash to recover from.
type Supervisor struct {
	logger      *slog.Logger
	launchID    string
	gracePeriod time.Duration

	mu   sync.Mutex
	host *managedProcess
	core *managedProcess
}

// NewSupervisor creates a Supervisor. gracePeriod bounds how long Terminate
// waits for a process to exit after the interrupt signal before killing it;
// zero selects the default.
func NewSupervisor(logger *slog.Logger, gracePeriod time.Duration) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if gracePeriod == 0 {
		gracePeriod = defaultGracefulShutdownPeriod
	}
	launchID := uuid.New().String()
	return &Supervisor{
		logger:      logger.With("component", "Supervisor", "launchID", launchID),
		launchID:    launchID,
		gracePeriod: gracePeriod,
	}
}

// LaunchID returns the unique identifier for this supervisor's launch,
// used to correlate log entries.
func (s *Supervisor) LaunchID() string {
	return s.launchID
}

// Launch starts the host process and then the core process. If the core
// fails to spawn, the already-running host is terminated before the error is
// returned, so a partially-started pair never outlives the failure.
func (s *Supervisor) Launch(hostSpec, coreSpec ProcessSpec) error {
	s.mu.Lock()
	if s.host.running() || s.core.running() {
		s.mu.Unlock()
		return fmt.Errorf("process pair already launched")
	}

	host, err := s.startProcess("host", hostSpec)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	core, err := s.startProcess("core", coreSpec)
	if err != nil {
		// The host was never published, so Poll cannot observe it;
		// stop it outside the lock.
		s.mu.Unlock()
		s.stopProcess(host)
		return err
	}

	s.host = host
	s.core = core
	s.mu.Unlock()
	return nil
}

// Poll reports the liveness of each process without blocking.
func (s *Supervisor) Poll() (hostRunning, coreRunning bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host.running(), s.core.running()
}

// BothRunning reports whether both processes are currently alive.
func (s *Supervisor) BothRunning() bool {
	host, core := s.Poll()
	return host && core
}

// Terminate stops the core process and then the host process. It is
// idempotent: terminating an already-exited or never-started process is a
// no-op, and signal failures on a disappearing process are swallowed.
func (s *Supervisor) Terminate() {
	// Snapshot and clear under the lock, signal outside it: stopProcess
	// can wait up to the grace period and Poll must never block on it.
	s.mu.Lock()
	core := s.core
	host := s.host
	s.core = nil
	s.host = nil
	s.mu.Unlock()

	if core != nil {
		s.stopProcess(core)
	}
	if host != nil {
		s.stopProcess(host)
	}
}

func (s *Supervisor) startProcess(name string, spec ProcessSpec) (*managedProcess, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	output := spec.Output
	if output == nil {
		output = io.Discard
	}
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Start(); err != nil {
		s.logger.Error("Failed to start subprocess", "process", name, "path", spec.Path, "error", err)
		return nil, fmt.Errorf("start %s process %s: %w", name, spec.Path, err)
	}

	s.logger.Info("Subprocess started", "process", name, "pid", cmd.Process.Pid, "command", cmd.String())

	p := &managedProcess{
		name:     name,
		cmd:      cmd,
		waitDone: make(chan struct{}),
	}
	go p.watch()
	return p, nil
}

// stopProcess sends an interrupt, waits up to the grace period for the
// process to exit, and kills it if it has not.
func (s *Supervisor) stopProcess(p *managedProcess) {
	if !p.running() {
		return
	}

	pid := p.cmd.Process.Pid
	s.logger.Info("Stopping subprocess", "process", p.name, "pid", pid)

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		// Process may have exited between the liveness check and the
		// signal; treat as already stopped.
		s.logger.Warn("Failed to signal subprocess", "process", p.name, "pid", pid, "error", err)
	}

	graceTimer := time.NewTimer(s.gracePeriod)
	defer graceTimer.Stop()

	select {
	case <-p.waitDone:
		s.logger.Info("Subprocess exited after interrupt", "process", p.name, "pid", pid)
	case <-graceTimer.C:
		s.logger.Warn("Subprocess did not exit in time, killing", "process", p.name, "pid", pid)
		if err := p.cmd.Process.Kill(); err != nil {
			s.logger.Error("Failed to kill subprocess", "process", p.name, "pid", pid, "error", err)
			return
		}
		<-p.waitDone
	}
}
