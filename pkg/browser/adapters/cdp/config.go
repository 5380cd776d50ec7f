package cdp

import (
	"errors"
	"strings"
	"time"
)

// Config controls how the adapter launches and talks to Chromium.
type Config struct {
	// ExecPath is the browser binary. Candidate names are searched on PATH
	// when empty.
	ExecPath         string
	Headless         bool
	UserDataDir      string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	ExtraArgs        []string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Headless:         true,
		ConnectTimeout:   10 * time.Second,
		OperationTimeout: 30 * time.Second,
	}
}

// execCandidates are tried in order when no explicit binary is configured.
var execCandidates = []string{"chromium", "chromium-browser", "google-chrome", "chrome"}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	defaults.Headless = c.Headless
	if strings.TrimSpace(c.ExecPath) != "" {
		defaults.ExecPath = c.ExecPath
	}
	if strings.TrimSpace(c.UserDataDir) != "" {
		defaults.UserDataDir = c.UserDataDir
	}
	if c.ConnectTimeout != 0 {
		defaults.ConnectTimeout = c.ConnectTimeout
	}
	if c.OperationTimeout != 0 {
		defaults.OperationTimeout = c.OperationTimeout
	}
	if len(c.ExtraArgs) > 0 {
		defaults.ExtraArgs = c.ExtraArgs
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	if c.ConnectTimeout < 0 {
		return errors.New("connect_timeout must be zero or positive")
	}
	if c.OperationTimeout < 0 {
		return errors.New("operation_timeout must be zero or positive")
	}
	return nil
}
