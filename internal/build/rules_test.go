package build

import (
	"path/filepath"
	"testing"
)

func TestIncludeRules(t *testing.T) {
	root := filepath.FromSlash("/work/src")

	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{
			name:    "include glob matches nested file",
			include: []string{"entities/**/*"},
			path:    "/work/src/entities/a.json",
			want:    true,
		},
		{
			name:    "include glob matches deeply nested file",
			include: []string{"entities/**/*"},
			path:    "/work/src/entities/hostile/zombie.json",
			want:    true,
		},
		{
			name:    "include glob rejects file outside pattern",
			include: []string{"entities/**/*"},
			path:    "/work/src/b.json",
			want:    false,
		},
		{
			name: "no include matches everything",
			path: "/work/src/anything/at/all.txt",
			want: true,
		},
		{
			name:    "exclude drops matching file",
			exclude: []string{"private/**/*"},
			path:    "/work/src/private/x.txt",
			want:    false,
		},
		{
			name:    "exclude leaves other files included",
			exclude: []string{"private/**/*"},
			path:    "/work/src/public/x.txt",
			want:    true,
		},
		{
			name:    "exclude wins over include",
			include: []string{"**/*.json"},
			exclude: []string{"drafts/**/*"},
			path:    "/work/src/drafts/a.json",
			want:    false,
		},
		{
			name: "path outside root is never included",
			path: "/work/other/a.json",
			want: false,
		},
		{
			name:    "multiple includes are a union",
			include: []string{"entities/**/*", "manifest.json5"},
			path:    "/work/src/manifest.json5",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newIncludeRules(root, tt.include, tt.exclude)
			if got := r.Match(filepath.FromSlash(tt.path)); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
