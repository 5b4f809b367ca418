package bundler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsScript(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"scripts/main.ts", true},
		{"scripts/main.js", true},
		{"scripts/util.mjs", true},
		{"scripts/legacy.cjs", true},
		{"scripts/view.tsx", true},
		{"manifest.json", false},
		{"textures/a.png", false},
		{"scripts/readme.md", false},
	}

	for _, tt := range tests {
		if got := IsScript(tt.path); got != tt.want {
			t.Errorf("IsScript(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestResolveEntryPointExplicit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.ts"), "export const x = 1\n")

	entry, err := resolveEntryPoint(Options{SourceRoot: dir, EntryPoint: "app.ts"})
	if err != nil {
		t.Fatalf("resolveEntryPoint() error = %v", err)
	}
	if entry != filepath.Join(dir, "app.ts") {
		t.Errorf("entry = %q, want app.ts under root", entry)
	}
}

func TestResolveEntryPointAutoDetect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.js"), "console.log(1)\n")
	writeFile(t, filepath.Join(dir, "main.ts"), "export {}\n")

	// main.ts is tried before index.js
	entry, err := resolveEntryPoint(Options{SourceRoot: dir})
	if err != nil {
		t.Fatalf("resolveEntryPoint() error = %v", err)
	}
	if filepath.Base(entry) != "main.ts" {
		t.Errorf("entry = %q, want main.ts", entry)
	}
}

func TestResolveEntryPointMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := resolveEntryPoint(Options{SourceRoot: dir}); err == nil {
		t.Error("expected error for missing entry point")
	}
	if _, err := resolveEntryPoint(Options{SourceRoot: dir, EntryPoint: "gone.ts"}); err == nil {
		t.Error("expected error for nonexistent explicit entry point")
	}
}

func TestEsbuildBundle(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(src, "util.js"), "export function add(a, b) { return a + b }\n")
	writeFile(t, filepath.Join(src, "main.js"), "import { add } from './util.js'\nconsole.log(add(1, 2))\n")

	b := NewEsbuild()
	err := b.Bundle(context.Background(), Options{
		SourceRoot: src,
		OutDir:     out,
		Bundle:     true,
	})
	if err != nil {
		t.Fatalf("Bundle() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "main.js"))
	if err != nil {
		t.Fatalf("bundled output missing: %v", err)
	}
	if !strings.Contains(string(data), "add") {
		t.Errorf("bundled output does not contain imported code:\n%s", data)
	}
}

func TestEsbuildBundleErrorSurfacesDiagnostics(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "main.js"), "import { missing } from './nope.js'\n")

	b := NewEsbuild()
	err := b.Bundle(context.Background(), Options{
		SourceRoot: src,
		OutDir:     t.TempDir(),
		Bundle:     true,
	})
	if err == nil {
		t.Fatal("expected bundle error for unresolved import")
	}
	if !strings.Contains(err.Error(), "nope.js") {
		t.Errorf("error should mention the unresolved module, got %v", err)
	}
}

func TestEsbuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewEsbuild()
	err := b.Bundle(ctx, Options{SourceRoot: t.TempDir(), OutDir: t.TempDir(), Bundle: true})
	if err != context.Canceled {
		t.Errorf("Bundle() on cancelled context = %v, want context.Canceled", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
