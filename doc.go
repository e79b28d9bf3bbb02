// Package clinego manages the lifecycle of the cline host/core process pair
// and hands callers a ready-to-use gRPC address once the pair is confirmed
// serving.
//
// Starting an instance allocates two free TCP ports, locates the
// cline-core.js artifact, launches cline-host and then cline-core, and polls
// the shared instance-lock database until the core reports itself serving on
// the allocated port. The gRPC service definitions themselves are out of
// scope: callers dial the returned address with their own generated stubs.
//
// # Basic Usage
//
//	instance, err := clinego.WithAvailablePorts()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	address, err := instance.Start()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer instance.Stop()
//
//	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
//	// ...
//
// # Scoped Acquisition
//
// Run guarantees teardown on every exit path from the callback, including a
// propagating panic:
//
//	err := instance.Run(func(address string) error {
//		return doWork(address)
//	})
//
// # Configuration Options
//
// The instance can be configured with functional options:
//
//	instance, err := clinego.WithAvailablePorts(
//		clinego.WithWorkingDir("/path/to/project"),
//		clinego.WithConfigPath("/path/to/.cline"),
//		clinego.WithReadyTimeout(60*time.Second),
//	)
//
// # Error Handling
//
// Start failures are typed: IsExecutableNotFoundError,
// IsPortExhaustionError, IsProcessLaunchError, IsProcessExitedError and
// IsReadinessTimeoutError let callers branch on cause. Any failure during
// Start tears down every process launched so far before the error is
// returned.
package clinego
