package mission

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMission(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeMission(t, "mission.json", `{
		"objective": "demo",
		"mode": "fast",
		"tasks": [
			{"id": "a", "command": "echo a", "writes": ["logical:a"]},
			{"id": "b", "command": "echo b", "depends_on": ["a"], "timeout_sec": 10, "retries": 2}
		],
		"verify": {"command": "true"}
	}`)

	m, err := Load(path, Defaults{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if m.Mode != ModeFast {
		t.Errorf("mode = %q, want fast", m.Mode)
	}
	// fast mode defaults: cap 6, retries 0
	if m.MaxConcurrency != 6 {
		t.Errorf("max_concurrency = %d, want 6", m.MaxConcurrency)
	}
	a, _ := m.Get("a")
	if a.Retries != 0 {
		t.Errorf("task a retries = %d, want 0 (fast mode default)", a.Retries)
	}
	b, _ := m.Get("b")
	if b.TimeoutSec != 10 || b.Retries != 2 {
		t.Errorf("task b overrides not applied: timeout=%d retries=%d", b.TimeoutSec, b.Retries)
	}
	if m.Verify == nil || m.Verify.Command != "true" {
		t.Errorf("verify phase not parsed: %+v", m.Verify)
	}
	if m.Integrate != nil {
		t.Errorf("integrate should be nil, got %+v", m.Integrate)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeMission(t, "mission.yaml", `
objective: yaml demo
mode: balanced
max_concurrency: 2
tasks:
  - id: a
    command: echo a
  - id: b
    command: echo b
    depends_on: [a]
`)

	m, err := Load(path, Defaults{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.MaxConcurrency != 2 {
		t.Errorf("max_concurrency = %d, want 2", m.MaxConcurrency)
	}
	if len(m.Tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(m.Tasks))
	}
	if m.Tasks[1].DependsOn[0] != "a" {
		t.Errorf("depends_on not parsed: %+v", m.Tasks[1])
	}
}

func TestLoadModeDefaultsTable(t *testing.T) {
	tests := []struct {
		mode        string
		wantCap     int
		wantRetries int
	}{
		{"fast", 6, 0},
		{"balanced", 4, 1},
		{"strict", 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			m, err := Parse("t.json", []byte(`{"mode": "`+tt.mode+`", "tasks": [{"id": "a", "command": "echo"}]}`), Defaults{})
			if err != nil {
				t.Fatal(err)
			}
			if m.MaxConcurrency != tt.wantCap {
				t.Errorf("max_concurrency = %d, want %d", m.MaxConcurrency, tt.wantCap)
			}
			if m.Tasks[0].Retries != tt.wantRetries {
				t.Errorf("retries = %d, want %d", m.Tasks[0].Retries, tt.wantRetries)
			}
		})
	}
}

func TestLoadWorkspaceDefaults(t *testing.T) {
	retries := 3
	defaults := Defaults{Mode: ModeStrict, MaxConcurrency: 2, TimeoutSec: 60, Retries: &retries}

	m, err := Parse("t.json", []byte(`{"tasks": [{"id": "a", "command": "echo"}]}`), defaults)
	if err != nil {
		t.Fatal(err)
	}
	if m.Mode != ModeStrict {
		t.Errorf("mode = %q, want strict", m.Mode)
	}
	if m.MaxConcurrency != 2 {
		t.Errorf("max_concurrency = %d, want 2", m.MaxConcurrency)
	}
	if m.Tasks[0].TimeoutSec != 60 || m.Tasks[0].Retries != 3 {
		t.Errorf("workspace defaults not applied: %+v", m.Tasks[0])
	}
}

// Mission-level fields always win over workspace defaults.
func TestMissionOverridesWorkspaceDefaults(t *testing.T) {
	m, err := Parse("t.json", []byte(`{"max_concurrency": 8, "default_retries": 0,
		"tasks": [{"id": "a", "command": "echo"}]}`),
		Defaults{MaxConcurrency: 2})
	if err != nil {
		t.Fatal(err)
	}
	if m.MaxConcurrency != 8 {
		t.Errorf("max_concurrency = %d, want 8", m.MaxConcurrency)
	}
	if m.Tasks[0].Retries != 0 {
		t.Errorf("retries = %d, want 0", m.Tasks[0].Retries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json"), Defaults{}); err == nil {
		t.Fatal("expected error for missing mission file")
	}
}

func TestLoadDirectoryPath(t *testing.T) {
	if _, err := Load(t.TempDir(), Defaults{}); err == nil {
		t.Fatal("expected error for directory mission path")
	}
}
