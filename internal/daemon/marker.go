// Package daemon manages the background run lifecycle: the active-run
// marker, detached mission launch, and cooperative cancellation. Marker
// existence is the sole signal that a background run is active, since start
// and cancel are issued from separate invocations of the tool.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Marker is the active-run marker persisted by start and removed by cancel
// or on natural completion.
type Marker struct {
	PID       int       `json:"pid"`
	Mission   string    `json:"mission"`
	Report    string    `json:"report"`
	Log       string    `json:"log"`
	StartedAt time.Time `json:"started_at"`
}

// ReadMarker loads the marker at path. A missing marker returns (nil, nil).
func ReadMarker(path string) (*Marker, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run marker: %w", err)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing run marker: %w", err)
	}
	return &m, nil
}

// WriteMarker persists the marker at path.
func WriteMarker(path string, m *Marker) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run marker: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing run marker: %w", err)
	}
	return nil
}

// RemoveMarker deletes the marker; a missing marker is not an error.
func RemoveMarker(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing run marker: %w", err)
	}
	return nil
}

// ClearIfOwner removes the marker when it names the calling process. The
// foreground run invokes this at exit so markers don't outlive natural
// completion.
func ClearIfOwner(path string) error {
	m, err := ReadMarker(path)
	if err != nil || m == nil {
		return err
	}
	if m.PID != os.Getpid() {
		return nil
	}
	return RemoveMarker(path)
}

// processAlive reports whether a process with the given pid exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
