package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjy5507/csmh/internal/workspace"
)

func TestMarkerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "active.json")
	m := &Marker{
		PID:       4242,
		Mission:   "/work/mission.json",
		Report:    "/work/.csmh/reports/active-report.json",
		Log:       "/work/.csmh/logs/active.log",
		StartedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := WriteMarker(path, m); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}

	got, err := ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if got == nil {
		t.Fatal("ReadMarker returned nil for an existing marker")
	}
	if got.PID != 4242 || got.Mission != m.Mission || got.Report != m.Report {
		t.Errorf("marker round-trip lost fields: %+v", got)
	}
	if !got.StartedAt.Equal(m.StartedAt) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, m.StartedAt)
	}
}

func TestReadMarkerMissing(t *testing.T) {
	m, err := ReadMarker(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if m != nil {
		t.Fatalf("marker = %+v, want nil when no file exists", m)
	}
}

func TestReadMarkerMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.json")
	if err := os.WriteFile(path, []byte("pid=123"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMarker(path); err == nil {
		t.Fatal("malformed marker should fail to parse")
	}
}

func TestRemoveMarkerIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.json")
	if err := WriteMarker(path, &Marker{PID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := RemoveMarker(path); err != nil {
		t.Fatalf("RemoveMarker: %v", err)
	}
	if err := RemoveMarker(path); err != nil {
		t.Fatalf("RemoveMarker on missing file: %v", err)
	}
}

func TestClearIfOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.json")

	// Foreign pid: the marker stays.
	if err := WriteMarker(path, &Marker{PID: os.Getpid() + 100000}); err != nil {
		t.Fatal(err)
	}
	if err := ClearIfOwner(path); err != nil {
		t.Fatalf("ClearIfOwner: %v", err)
	}
	if m, _ := ReadMarker(path); m == nil {
		t.Fatal("ClearIfOwner removed a marker owned by another process")
	}

	// Own pid: the marker goes.
	if err := WriteMarker(path, &Marker{PID: os.Getpid()}); err != nil {
		t.Fatal(err)
	}
	if err := ClearIfOwner(path); err != nil {
		t.Fatalf("ClearIfOwner: %v", err)
	}
	if m, _ := ReadMarker(path); m != nil {
		t.Fatal("ClearIfOwner left the calling process's own marker behind")
	}

	// No marker at all is fine.
	if err := ClearIfOwner(path); err != nil {
		t.Fatalf("ClearIfOwner on missing marker: %v", err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("processAlive(self) = false")
	}
	if processAlive(0) || processAlive(-1) {
		t.Error("processAlive should reject non-positive pids")
	}
}

func TestCancelWithoutMarker(t *testing.T) {
	ws := workspace.New(t.TempDir())
	outcome, m, err := Cancel(ws)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != CancelNone || m != nil {
		t.Errorf("outcome = %v, marker = %+v; want CancelNone and nil", outcome, m)
	}
}

func TestCancelCleansStaleMarker(t *testing.T) {
	ws := workspace.New(t.TempDir())
	// A pid far above any live process on a fresh test machine; if it happens
	// to be alive the kill targets its group, so use an impossible value.
	stale := &Marker{PID: 1 << 22, Mission: "/gone.json"}
	if err := WriteMarker(ws.MarkerPath(), stale); err != nil {
		t.Fatal(err)
	}

	outcome, m, err := Cancel(ws)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != CancelStale {
		t.Errorf("outcome = %v, want CancelStale", outcome)
	}
	if m == nil || m.PID != stale.PID {
		t.Errorf("marker = %+v, want the stale marker echoed back", m)
	}
	if left, _ := ReadMarker(ws.MarkerPath()); left != nil {
		t.Error("stale marker not removed")
	}
}
