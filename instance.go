package clinego

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/clinetools/clinego/locks"
	"github.com/clinetools/clinego/processes"
)

// State represents the lifecycle state of an Instance.
type State int

const (
	// StateNotStarted means Start has not been called yet.
	StateNotStarted State = iota
	// StateStarting means the process pair is launching and readiness has
	// not been confirmed.
	StateStarting
	// StateRunning means the pair is confirmed serving and the address is
	// valid.
	StateRunning
	// StateStopped means the pair has been terminated via Stop.
	StateStopped
	// StateFailed means a Start attempt failed.
	StateFailed
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "InvalidState"
	}
}

const (
	defaultHostCommand = "cline-host"
	defaultNodeCommand = "node"
)

// Instance is the public lifecycle handle for one cline host/core process
// pair. It composes port allocation, executable resolution, process
// supervision and readiness monitoring, and exposes the resolved gRPC
// address once the pair is confirmed serving.
type Instance struct {
	hostPort int
	corePort int

	configPath  string
	workingDir  string
	corePath    string
	hostCommand string
	nodeCommand string
	lockDBPath  string

	readyTimeout time.Duration
	pollInterval time.Duration
	gracePeriod  time.Duration

	logger *slog.Logger

	mu      sync.Mutex
	state   State
	address string
	sup     *processes.Supervisor
}

// Option represents a functional option for configuring an Instance.
type Option func(*Instance)

// WithWorkingDir sets the working directory the host process runs in.
func WithWorkingDir(dir string) Option {
	return func(i *Instance) {
		i.workingDir = dir
	}
}

// WithConfigPath sets the cline configuration directory. The core process
// receives it as its --config argument and the readiness lock database is
// expected underneath it.
func WithConfigPath(path string) Option {
	return func(i *Instance) {
		i.configPath = path
		i.lockDBPath = locks.DefaultDBPath(path)
	}
}

// WithCorePath sets an explicit path to the core artifact or to a directory
// or executable it can be resolved from, bypassing the environment and PATH
// search tiers.
func WithCorePath(path string) Option {
	return func(i *Instance) {
		i.corePath = path
	}
}

// WithReadyTimeout sets how long Start waits for the readiness signal.
func WithReadyTimeout(timeout time.Duration) Option {
	return func(i *Instance) {
		i.readyTimeout = timeout
	}
}

// WithPollInterval sets the delay between readiness polls.
func WithPollInterval(interval time.Duration) Option {
	return func(i *Instance) {
		i.pollInterval = interval
	}
}

// WithGracePeriod sets how long Stop waits for a process to exit after the
// interrupt signal before killing it.
func WithGracePeriod(period time.Duration) Option {
	return func(i *Instance) {
		i.gracePeriod = period
	}
}

// WithHostCommand overrides the host launcher executable (default
// "cline-host").
func WithHostCommand(command string) Option {
	return func(i *Instance) {
		i.hostCommand = command
	}
}

// WithNodeCommand overrides the interpreter used to run the core artifact
// (default "node").
func WithNodeCommand(command string) Option {
	return func(i *Instance) {
		i.nodeCommand = command
	}
}

// WithLogger sets the logger used by the instance and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instance) {
		i.logger = logger
	}
}

// NewInstance creates an Instance bound to the given host and core ports.
// Most callers should use WithAvailablePorts instead.
func NewInstance(hostPort, corePort int, options ...Option) *Instance {
	configPath := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		configPath = filepath.Join(homeDir, ".cline")
	}

	workingDir, err := os.Getwd()
	if err != nil {
		workingDir = "."
	}

	instance := &Instance{
		hostPort:     hostPort,
		corePort:     corePort,
		configPath:   configPath,
		workingDir:   workingDir,
		hostCommand:  defaultHostCommand,
		nodeCommand:  defaultNodeCommand,
		lockDBPath:   locks.DefaultDBPath(configPath),
		readyTimeout: locks.DefaultWaitTimeout,
		pollInterval: locks.DefaultPollInterval,
		logger:       slog.Default(),
		state:        StateNotStarted,
	}

	for _, option := range options {
		option(instance)
	}

	return instance
}

// WithAvailablePorts allocates a pair of free TCP ports and constructs an
// Instance bound to them. The ports are not reserved: Start should be
// called promptly, and a concurrent bind by another process surfaces as a
// process launch or readiness failure rather than a hang.
func WithAvailablePorts(options ...Option) (*Instance, error) {
	hostPort, corePort, err := processes.AllocatePortPair()
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypePortExhaustion, "failed to allocate port pair", err)
	}
	return NewInstance(hostPort, corePort, options...), nil
}

// HostPort returns the port allocated for the host process.
func (i *Instance) HostPort() int {
	return i.hostPort
}

// CorePort returns the port allocated for the core process.
func (i *Instance) CorePort() int {
	return i.corePort
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Address returns the resolved gRPC address of the core process. It is
// non-empty if and only if the instance is in the Running state; once the
// instance is stopped or failed the address is stale and unusable.
func (i *Instance) Address() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != StateRunning {
		return ""
	}
	return i.address
}

// Start launches the host process and then the core process, waits for the
// readiness lock to appear, and returns the serving address. On failure at
// any stage every process launched so far is terminated before the error is
// returned, so no orphaned process outlives a failed Start. The returned
// error is a typed *Error distinguishing executable-not-found, launch
// failure, premature process exit and readiness timeout.
func (i *Instance) Start() (string, error) {
	i.mu.Lock()
	if i.state == StateStarting || i.state == StateRunning {
		i.mu.Unlock()
		return "", fmt.Errorf("instance already started (state: %s)", i.state)
	}
	i.state = StateStarting
	i.address = ""
	i.mu.Unlock()

	corePath, err := processes.ResolveCorePath(i.logger, i.corePath)
	if err != nil {
		i.fail()
		if errors.Is(err, processes.ErrExecutableNotFound) {
			return "", NewErrorWithCause(ErrorTypeExecutableNotFound, "failed to locate core artifact", err)
		}
		return "", NewErrorWithCause(ErrorTypeUnknown, "failed to locate core artifact", err)
	}

	sup := processes.NewSupervisor(i.logger, i.gracePeriod)
	if err := sup.Launch(i.hostSpec(), i.coreSpec(corePath)); err != nil {
		i.fail()
		return "", NewErrorWithCause(ErrorTypeProcessLaunch, "failed to launch process pair", err)
	}

	i.mu.Lock()
	i.sup = sup
	i.mu.Unlock()

	lock, outcome := locks.WaitForInstance(i.logger, i.lockDBPath, i.corePort, sup, i.readyTimeout, i.pollInterval)
	switch outcome {
	case locks.WaitReady:
		i.mu.Lock()
		i.state = StateRunning
		i.address = lock.HeldBy
		i.mu.Unlock()
		i.logger.Info("Instance ready", "address", lock.HeldBy, "launchID", sup.LaunchID())
		return lock.HeldBy, nil
	case locks.WaitExited:
		sup.Terminate()
		i.fail()
		return "", NewError(ErrorTypeProcessExited, fmt.Sprintf("process exited before instance lock appeared for port %d", i.corePort))
	default:
		sup.Terminate()
		i.fail()
		return "", NewError(ErrorTypeReadinessTimeout, fmt.Sprintf("no instance lock found for port %d within %s", i.corePort, i.readyTimeout))
	}
}

// Stop terminates the core process and then the host process. It is
// idempotent: stopping an already-stopped or never-started instance is a
// safe no-op, and termination failures on already-gone processes are
// swallowed.
func (i *Instance) Stop() {
	i.mu.Lock()
	sup := i.sup
	i.sup = nil
	if i.state != StateNotStarted {
		i.state = StateStopped
	}
	i.address = ""
	i.mu.Unlock()

	if sup != nil {
		sup.Terminate()
	}
}

// IsRunning reports whether both processes are currently alive according to
// a fresh liveness poll, not cached state. A pair that crashed after a
// successful Start reports false here even though State is still Running.
func (i *Instance) IsRunning() bool {
	i.mu.Lock()
	sup := i.sup
	i.mu.Unlock()
	return sup != nil && sup.BothRunning()
}

// Run starts the instance, invokes fn with the serving address, and stops
// the instance when fn returns. Teardown is deferred, so it happens on
// normal return, on error, and while a panic from fn propagates.
func (i *Instance) Run(fn func(address string) error) error {
	address, err := i.Start()
	if err != nil {
		return err
	}
	defer i.Stop()
	return fn(address)
}

func (i *Instance) fail() {
	i.mu.Lock()
	i.state = StateFailed
	i.address = ""
	i.sup = nil
	i.mu.Unlock()
}

func (i *Instance) hostSpec() processes.ProcessSpec {
	return processes.ProcessSpec{
		Path: i.hostCommand,
		Args: []string{"--verbose", "--port", strconv.Itoa(i.hostPort)},
		Dir:  i.workingDir,
	}
}

func (i *Instance) coreSpec(corePath string) processes.ProcessSpec {
	coreDir := filepath.Dir(corePath)
	// cline-core resolves some modules from a fake_node_modules overlay
	// next to the real node_modules.
	nodePath := filepath.Join(coreDir, "node_modules") + string(os.PathListSeparator) + filepath.Join(coreDir, "fake_node_modules")

	return processes.ProcessSpec{
		Path: i.nodeCommand,
		Args: []string{
			corePath,
			"--port", strconv.Itoa(i.corePort),
			"--host-bridge-port", strconv.Itoa(i.hostPort),
			"--config", i.configPath,
		},
		Dir: coreDir,
		Env: []string{
			"PATH=" + os.Getenv("PATH"),
			"NODE_PATH=" + nodePath,
			"GRPC_TRACE=all",
			"GRPC_VERBOSITY=DEBUG",
			"NODE_ENV=development",
		},
	}
}
