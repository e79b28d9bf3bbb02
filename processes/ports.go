package processes

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoFreePort is returned when a free TCP port could not be bound within
// the bounded number of allocation attempts.
var ErrNoFreePort = errors.New("no free TCP port available")

// maxPortAttempts bounds the number of probe binds per allocated port.
const maxPortAttempts = 16

// AllocatePortPair finds two distinct TCP ports that are currently free on
// the loopback interface, one for the host process and one for the core
// process. A port is sampled by binding an ephemeral listener and releasing
// it immediately, so there is no reservation: the caller must bind promptly,
// and a concurrent process grabbing the port between allocation and use
// surfaces as a bind failure in the subprocess rather than here.
func AllocatePortPair() (hostPort, corePort int, err error) {
	hostPort, err = allocatePort(0)
	if err != nil {
		return 0, 0, err
	}
	corePort, err = allocatePort(hostPort)
	if err != nil {
		return 0, 0, err
	}
	return hostPort, corePort, nil
}

// allocatePort samples one currently-free port, skipping `exclude` so the
// pair is guaranteed distinct even if the kernel hands back the same
// ephemeral port twice.
func allocatePort(exclude int) (int, error) {
	for attempt := 0; attempt < maxPortAttempts; attempt++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			continue
		}
		port := l.Addr().(*net.TCPAddr).Port
		l.Close()
		if port == exclude {
			continue
		}
		return port, nil
	}
	return 0, fmt.Errorf("%w after %d attempts", ErrNoFreePort, maxPortAttempts)
}
