// clinectl launches a cline host/core process pair, prints the serving gRPC
// address, and keeps the pair alive until interrupted.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	clinego "github.com/clinetools/clinego"
)

func main() {
	configFile := flag.String("config", "", "Path to a clinectl TOML config file")
	workingDir := flag.String("workdir", "", "Working directory for the host process")
	corePath := flag.String("core", "", "Explicit path to cline-core.js or a directory containing it")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := runConfig{}
	if *configFile != "" {
		var err error
		cfg, err = loadRunConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "clinectl: %v\n", err)
			os.Exit(1)
		}
	}
	// Flags override file settings.
	if *workingDir != "" {
		cfg.WorkingDir = *workingDir
	}
	if *corePath != "" {
		cfg.CorePath = *corePath
	}

	opts := append(cfg.options(), clinego.WithLogger(logger))
	instance, err := clinego.WithAvailablePorts(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clinectl: %v\n", err)
		os.Exit(1)
	}

	address, err := instance.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "clinectl: %v\n", err)
		os.Exit(1)
	}
	defer instance.Stop()

	fmt.Println(address)
	logger.Info("Instance running", "address", address, "hostPort", instance.HostPort(), "corePort", instance.CorePort())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, shutting down", "signal", sig.String())
}
