package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// current holds the process-wide configuration loaded by the CLI.
	current atomic.Pointer[Config]

	// initMu serialises Initialize so concurrent callers load the file once.
	initMu sync.Mutex
)

// Initialize loads configuration from path with environment overrides and
// installs it as the process-wide configuration. Once a configuration is
// installed, later calls are no-ops; use ReloadConfig to replace it.
//
// An empty path starts from the defaults.
func Initialize(path string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if current.Load() != nil {
		return nil
	}
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	current.Store(cfg)
	return nil
}

// GetConfig returns the process-wide configuration, or nil before Initialize.
//
// Library packages take their settings as explicit arguments; only cmd/sentinel
// reads the process-wide value.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the process-wide configuration. A nil cfg clears it so the
// next Initialize loads again. Intended for tests.
func SetConfig(cfg *Config) {
	initMu.Lock()
	defer initMu.Unlock()
	current.Store(cfg)
}

// ReloadConfig reloads path and replaces the process-wide configuration only if
// loading and validation succeed.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	current.Store(cfg)
	return nil
}

// MustGetConfig returns the process-wide configuration and panics if Initialize
// has not been called.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
