// Package config provides configuration management for packsmith.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Project config (.packsmith/config.toml or packsmith.toml)
//  3. Environment variables (PACKSMITH_*)
//  4. CLI flags (highest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// PackKind identifies the two content unit kinds.
type PackKind string

const (
	// KindBehavior is a behavior pack (logic, entities, scripts).
	KindBehavior PackKind = "behavior"
	// KindResource is a resource pack (textures, sounds, models).
	KindResource PackKind = "resource"
)

// PackConfig describes one pack: its source tree, where it is
// published, and which files it tracks. Immutable once resolved.
type PackConfig struct {
	// Kind is set during resolution from the enclosing table name.
	Kind PackKind `toml:"-"`

	// Source is the pack's source root directory.
	Source string `toml:"source"`

	// Targets are directories the staged output is replace-copied into.
	Targets []string `toml:"targets"`

	// Include restricts tracked files to those matching at least one
	// glob (relative to Source). Empty means everything.
	Include []string `toml:"include"`

	// Exclude drops files matching any glob, after Include.
	Exclude []string `toml:"exclude"`

	// ContentHash enables content-based change detection on top of
	// modification times. Catches same-millisecond edits at the cost
	// of hashing every tracked file per diff.
	ContentHash bool `toml:"content_hash"`

	// Scripts configures the script bundler for this pack. Nil means
	// script files are copied like any other file.
	Scripts *ScriptConfig `toml:"scripts"`
}

// ScriptConfig holds bundler options for a pack's scripts subtree.
type ScriptConfig struct {
	// Entry is the entry module relative to the scripts directory.
	// Empty means auto-detect.
	Entry string `toml:"entry"`

	// Bundle merges the module graph into one output file.
	Bundle bool `toml:"bundle"`

	// Minify shrinks the emitted scripts.
	Minify bool `toml:"minify"`

	// SourceMaps emits linked source maps.
	SourceMaps bool `toml:"source_maps"`

	// External lists module specifiers resolved by the runtime.
	External []string `toml:"external"`
}

// ArchiveConfig describes one compressed archive built from pack
// staging directories.
type ArchiveConfig struct {
	// Output is the archive file path.
	Output string `toml:"output"`

	// Packs names the packs bundled into this archive. Empty means
	// every configured pack.
	Packs []string `toml:"packs"`

	// Level is the deflate compression level (0-9).
	Level int `toml:"level"`
}

// Config is the resolved build configuration. Created once per build
// invocation; immutable afterwards.
type Config struct {
	// Behavior and Resource are the configured packs. Either may be
	// nil, but not both.
	Behavior *PackConfig `toml:"behavior"`
	Resource *PackConfig `toml:"resource"`

	// Archives lists archives produced after a successful build.
	Archives []ArchiveConfig `toml:"archive"`

	// TempRoot overrides the base directory for the staging root.
	// Empty means the OS temp directory.
	TempRoot string `toml:"temp_root"`

	// Watch keeps the build running, reacting to filesystem events.
	Watch bool `toml:"watch"`

	// DebounceMS is the watch quiet period in milliseconds.
	DebounceMS int `toml:"debounce_ms"`

	// Verbosity is the log verbosity (0-4).
	Verbosity int `toml:"verbosity"`
}

// NewConfig returns a config populated with built-in defaults.
func NewConfig() *Config {
	return &Config{
		DebounceMS: 100,
		Verbosity:  1,
	}
}

// Packs returns the configured packs in a stable order.
func (c *Config) Packs() []*PackConfig {
	var packs []*PackConfig
	if c.Behavior != nil {
		packs = append(packs, c.Behavior)
	}
	if c.Resource != nil {
		packs = append(packs, c.Resource)
	}
	return packs
}

// Resolve makes all paths absolute relative to baseDir and stamps pack
// kinds. Call once before Validate.
func (c *Config) Resolve(baseDir string) error {
	if c.Behavior != nil {
		c.Behavior.Kind = KindBehavior
	}
	if c.Resource != nil {
		c.Resource.Kind = KindResource
	}

	for _, pack := range c.Packs() {
		src, err := absJoin(baseDir, pack.Source)
		if err != nil {
			return fmt.Errorf("resolve %s source: %w", pack.Kind, err)
		}
		pack.Source = src
		for i, target := range pack.Targets {
			abs, err := absJoin(baseDir, target)
			if err != nil {
				return fmt.Errorf("resolve %s target: %w", pack.Kind, err)
			}
			pack.Targets[i] = abs
		}
	}

	for i := range c.Archives {
		abs, err := absJoin(baseDir, c.Archives[i].Output)
		if err != nil {
			return fmt.Errorf("resolve archive output: %w", err)
		}
		c.Archives[i].Output = abs
	}

	if c.TempRoot != "" {
		abs, err := absJoin(baseDir, c.TempRoot)
		if err != nil {
			return fmt.Errorf("resolve temp root: %w", err)
		}
		c.TempRoot = abs
	}

	return nil
}

// Validate checks the configuration. Configuration errors are fatal
// and reported before any build starts.
func (c *Config) Validate() error {
	packs := c.Packs()
	if len(packs) == 0 {
		return fmt.Errorf("no packs configured: define [behavior] or [resource]")
	}

	names := make(map[string]bool, len(packs))
	for _, pack := range packs {
		names[string(pack.Kind)] = true
		if pack.Source == "" {
			return fmt.Errorf("%s pack: source is required", pack.Kind)
		}
		info, err := os.Stat(pack.Source)
		if err != nil {
			return fmt.Errorf("%s pack: source %s: %w", pack.Kind, pack.Source, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s pack: source %s is not a directory", pack.Kind, pack.Source)
		}
		if len(pack.Targets) == 0 {
			return fmt.Errorf("%s pack: at least one target is required", pack.Kind)
		}
	}

	for _, archive := range c.Archives {
		if archive.Output == "" {
			return fmt.Errorf("archive: output is required")
		}
		if archive.Level < 0 || archive.Level > 9 {
			return fmt.Errorf("archive %s: compression level %d out of range 0-9", archive.Output, archive.Level)
		}
		for _, name := range archive.Packs {
			if !names[name] {
				return fmt.Errorf("archive %s: unknown pack %q", archive.Output, name)
			}
		}
	}

	if c.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must be non-negative, got %d", c.DebounceMS)
	}

	return nil
}

// absJoin resolves path against base when relative.
func absJoin(base, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Abs(filepath.Join(base, path))
}
