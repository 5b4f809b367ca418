package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "packsmith.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".packsmith"

// Load finds and loads the project configuration starting from dir,
// searching upward to a workspace root. Environment variables are
// applied on top; CLI flags are applied separately by the caller.
// The returned config is resolved but not validated.
func Load(dir string) (*Config, error) {
	path := findConfigFile(dir)
	if path == "" {
		return nil, fmt.Errorf("no %s found in %s or any parent directory", ConfigFileName, dir)
	}
	return LoadFile(path)
}

// LoadFile loads a specific config file.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvironmentVariables(cfg)

	if err := cfg.Resolve(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile searches dir and its parents for a config file.
// Stops at a filesystem root or a git workspace root.
func findConfigFile(dir string) string {
	current := dir
	for {
		// .packsmith/config.toml takes precedence.
		candidate := filepath.Join(current, ConfigDirName, "config.toml")
		if fileExists(candidate) {
			return candidate
		}

		candidate = filepath.Join(current, ConfigFileName)
		if fileExists(candidate) {
			return candidate
		}

		if isWorkspaceRoot(current) {
			return ""
		}

		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// isWorkspaceRoot checks if the directory is a workspace root.
func isWorkspaceRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// applyEnvironmentVariables applies PACKSMITH_* overrides.
func applyEnvironmentVariables(cfg *Config) {
	if v := os.Getenv("PACKSMITH_TEMP_ROOT"); v != "" {
		cfg.TempRoot = v
	}
	if v := os.Getenv("PACKSMITH_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.DebounceMS = ms
		}
	}
	if v := os.Getenv("PACKSMITH_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Watch = b
		}
	}
	if v := os.Getenv("PACKSMITH_VERBOSITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Verbosity = n
		}
	}
}
