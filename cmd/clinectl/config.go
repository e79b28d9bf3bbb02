package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	clinego "github.com/clinetools/clinego"
)

// runConfig holds the resolved launch settings for one instance.
type runConfig struct {
	WorkingDir   string
	ConfigPath   string
	CorePath     string
	HostCommand  string
	NodeCommand  string
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

// clinectl config.toml key mapping to instance options.
type fileConfig struct {
	WorkingDir     string `toml:"working_dir"`
	ConfigPath     string `toml:"config_path"`
	CorePath       string `toml:"core_path"`
	HostCommand    string `toml:"host_command"`
	NodeCommand    string `toml:"node_command"`
	ReadyTimeoutS  int    `toml:"ready_timeout_seconds"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
}

// loadRunConfig overlays the TOML file at path onto defaults. Only keys
// actually present in the file override.
func loadRunConfig(path string) (runConfig, error) {
	cfg := runConfig{}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load clinectl config: %w", err)
	}

	if meta.IsDefined("working_dir") {
		cfg.WorkingDir = strings.TrimSpace(raw.WorkingDir)
	}
	if meta.IsDefined("config_path") {
		cfg.ConfigPath = strings.TrimSpace(raw.ConfigPath)
	}
	if meta.IsDefined("core_path") {
		cfg.CorePath = strings.TrimSpace(raw.CorePath)
	}
	if meta.IsDefined("host_command") {
		cfg.HostCommand = strings.TrimSpace(raw.HostCommand)
	}
	if meta.IsDefined("node_command") {
		cfg.NodeCommand = strings.TrimSpace(raw.NodeCommand)
	}
	if meta.IsDefined("ready_timeout_seconds") {
		if raw.ReadyTimeoutS <= 0 {
			return runConfig{}, fmt.Errorf("load clinectl config: ready_timeout_seconds must be positive, got %d", raw.ReadyTimeoutS)
		}
		cfg.ReadyTimeout = time.Duration(raw.ReadyTimeoutS) * time.Second
	}
	if meta.IsDefined("poll_interval_ms") {
		if raw.PollIntervalMS <= 0 {
			return runConfig{}, fmt.Errorf("load clinectl config: poll_interval_ms must be positive, got %d", raw.PollIntervalMS)
		}
		cfg.PollInterval = time.Duration(raw.PollIntervalMS) * time.Millisecond
	}

	return cfg, nil
}

// options translates the config into instance options, skipping zero values
// so library defaults apply.
func (cfg runConfig) options() []clinego.Option {
	var opts []clinego.Option
	if cfg.WorkingDir != "" {
		opts = append(opts, clinego.WithWorkingDir(cfg.WorkingDir))
	}
	if cfg.ConfigPath != "" {
		opts = append(opts, clinego.WithConfigPath(cfg.ConfigPath))
	}
	if cfg.CorePath != "" {
		opts = append(opts, clinego.WithCorePath(cfg.CorePath))
	}
	if cfg.HostCommand != "" {
		opts = append(opts, clinego.WithHostCommand(cfg.HostCommand))
	}
	if cfg.NodeCommand != "" {
		opts = append(opts, clinego.WithNodeCommand(cfg.NodeCommand))
	}
	if cfg.ReadyTimeout != 0 {
		opts = append(opts, clinego.WithReadyTimeout(cfg.ReadyTimeout))
	}
	if cfg.PollInterval != 0 {
		opts = append(opts, clinego.WithPollInterval(cfg.PollInterval))
	}
	return opts
}
