// Package config loads store configuration from .somas/config.yaml and
// environment variables. Configuration is read once at startup; anything
// missing or malformed silently falls back to the defaults, so a bad
// config file can degrade behavior but never stop the store.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds store construction parameters
type Config struct {
	// ProjectsDir is the root directory for per-project state files
	// Default: ".somas/projects"
	ProjectsDir string `yaml:"projects_dir"`

	// MaxCheckpoints is the number of checkpoints retained per project
	// Oldest checkpoints are evicted beyond this bound
	// Default: 20, Range: 1-1000
	MaxCheckpoints int `yaml:"max_checkpoints"`

	// LockTimeoutSecs bounds the wait for any advisory file lock
	// Default: 30, Range: 1-600
	LockTimeoutSecs int `yaml:"lock_timeout_secs"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		ProjectsDir:     ".somas/projects",
		MaxCheckpoints:  20,
		LockTimeoutSecs: 30,
	}
}

// LockTimeout returns the lock timeout as a duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSecs) * time.Second
}

// Load reads configuration for the given working directory. Precedence,
// lowest to highest: defaults, <dir>/.somas/config.yaml, environment
// variables (SOMAS_PROJECTS_DIR, SOMAS_MAX_CHECKPOINTS,
// SOMAS_LOCK_TIMEOUT_SECS). Values outside their documented range are
// discarded in favor of the default.
func Load(dir string) Config {
	cfg := Default()

	configPath := filepath.Join(dir, ".somas", "config.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		var fileCfg Config
		if yaml.Unmarshal(data, &fileCfg) == nil {
			if fileCfg.ProjectsDir != "" {
				cfg.ProjectsDir = fileCfg.ProjectsDir
			}
			if fileCfg.MaxCheckpoints != 0 {
				cfg.MaxCheckpoints = fileCfg.MaxCheckpoints
			}
			if fileCfg.LockTimeoutSecs != 0 {
				cfg.LockTimeoutSecs = fileCfg.LockTimeoutSecs
			}
		}
	}

	if v := os.Getenv("SOMAS_PROJECTS_DIR"); v != "" {
		cfg.ProjectsDir = v
	}
	if v := os.Getenv("SOMAS_MAX_CHECKPOINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxCheckpoints = n
		}
	}
	if v := os.Getenv("SOMAS_LOCK_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockTimeoutSecs = n
		}
	}

	if cfg.MaxCheckpoints < 1 || cfg.MaxCheckpoints > 1000 {
		cfg.MaxCheckpoints = Default().MaxCheckpoints
	}
	if cfg.LockTimeoutSecs < 1 || cfg.LockTimeoutSecs > 600 {
		cfg.LockTimeoutSecs = Default().LockTimeoutSecs
	}

	return cfg
}
