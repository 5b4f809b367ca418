package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "packs", "bp"), 0o755); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, dir, `
debounce_ms = 250

[behavior]
source = "packs/bp"
targets = ["out/bp"]
include = ["entities/**/*", "manifest.json5"]
content_hash = true

[behavior.scripts]
entry = "main.ts"
bundle = true
minify = true
source_maps = true
external = ["@engine/server"]

[[archive]]
output = "dist/addon.zip"
packs = ["behavior"]
level = 9
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Behavior == nil {
		t.Fatal("behavior pack not loaded")
	}
	if cfg.Behavior.Kind != KindBehavior {
		t.Errorf("Kind = %q, want behavior", cfg.Behavior.Kind)
	}
	if cfg.Behavior.Source != filepath.Join(dir, "packs", "bp") {
		t.Errorf("Source = %q, want resolved absolute path", cfg.Behavior.Source)
	}
	if !cfg.Behavior.ContentHash {
		t.Error("content_hash not loaded")
	}
	if cfg.Behavior.Scripts == nil || cfg.Behavior.Scripts.Entry != "main.ts" {
		t.Errorf("Scripts = %+v, want entry main.ts", cfg.Behavior.Scripts)
	}
	if cfg.Resource != nil {
		t.Error("resource pack should be nil")
	}
	if cfg.DebounceMS != 250 {
		t.Errorf("DebounceMS = %d, want 250", cfg.DebounceMS)
	}
	if len(cfg.Archives) != 1 || cfg.Archives[0].Level != 9 {
		t.Errorf("Archives = %+v, want one archive at level 9", cfg.Archives)
	}
	if cfg.Archives[0].Output != filepath.Join(dir, "dist", "addon.zip") {
		t.Errorf("archive output = %q, want resolved absolute path", cfg.Archives[0].Output)
	}
}

func TestLoadSearchesUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, root, "[behavior]\nsource = \"src\"\ntargets = [\"out\"]\n")

	cfg, err := Load(nested)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Behavior == nil {
		t.Fatal("behavior pack not loaded from parent config")
	}
}

func TestLoadMissingConfig(t *testing.T) {
	dir := t.TempDir()
	// Mark as workspace root so the search does not escape the temp dir.
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error when no config exists")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "debounce_ms = 100\n[behavior]\nsource = \"src\"\ntargets = [\"out\"]\n")

	t.Setenv("PACKSMITH_DEBOUNCE_MS", "500")
	t.Setenv("PACKSMITH_WATCH", "true")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.DebounceMS != 500 {
		t.Errorf("DebounceMS = %d, want env override 500", cfg.DebounceMS)
	}
	if !cfg.Watch {
		t.Error("Watch should be set from environment")
	}
}

func TestValidate(t *testing.T) {
	src := t.TempDir()

	valid := func() *Config {
		return &Config{
			Behavior: &PackConfig{
				Kind:    KindBehavior,
				Source:  src,
				Targets: []string{filepath.Join(src, "out")},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no packs", func(c *Config) { c.Behavior = nil }, true},
		{"missing source", func(c *Config) { c.Behavior.Source = "" }, true},
		{"nonexistent source", func(c *Config) { c.Behavior.Source = filepath.Join(src, "gone") }, true},
		{"no targets", func(c *Config) { c.Behavior.Targets = nil }, true},
		{"archive level too high", func(c *Config) {
			c.Archives = []ArchiveConfig{{Output: "a.zip", Level: 10}}
		}, true},
		{"archive unknown pack", func(c *Config) {
			c.Archives = []ArchiveConfig{{Output: "a.zip", Packs: []string{"resource"}}}
		}, true},
		{"archive valid", func(c *Config) {
			c.Archives = []ArchiveConfig{{Output: "a.zip", Packs: []string{"behavior"}, Level: 6}}
		}, false},
		{"negative debounce", func(c *Config) { c.DebounceMS = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPacksOrder(t *testing.T) {
	cfg := &Config{
		Behavior: &PackConfig{Kind: KindBehavior},
		Resource: &PackConfig{Kind: KindResource},
	}
	packs := cfg.Packs()
	if len(packs) != 2 || packs[0].Kind != KindBehavior || packs[1].Kind != KindResource {
		t.Errorf("Packs() order wrong: %+v", packs)
	}
}
