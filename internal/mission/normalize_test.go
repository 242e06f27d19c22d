package mission

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeWriteTarget(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"logical passes through", "logical:db-schema", "logical:db-schema"},
		{"logical with spaces trimmed", "  logical:db-schema  ", "logical:db-schema"},
		{"relative path absolutized", "src/main.go", filepath.Join(cwd, "src", "main.go")},
		{"dot segments collapsed", "src/../src/main.go", filepath.Join(cwd, "src", "main.go")},
		{"absolute path cleaned", "/tmp//out.txt", "/tmp/out.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeWriteTarget(tt.target); got != tt.want {
				t.Errorf("NormalizeWriteTarget(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

// Equivalent spellings of the same path must collide so the lock table can
// serialize the writers.
func TestNormalizeEquivalentPathsCollide(t *testing.T) {
	a := NormalizeWriteTarget("pkg/a/../b/file.go")
	b := NormalizeWriteTarget("pkg/b/file.go")
	if a != b {
		t.Errorf("equivalent paths normalize differently: %q vs %q", a, b)
	}
}

func TestNormalizeTildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := NormalizeWriteTarget("~/notes.txt"); got != filepath.Join(home, "notes.txt") {
		t.Errorf("tilde expansion failed: %q", got)
	}
}
