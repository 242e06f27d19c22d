// Package report defines the mission report schema and its atomic
// persistence. A report is created once, at mission termination, and is
// immutable thereafter.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cjy5507/csmh/internal/runner"
)

// Mission status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// MissionInfo echoes the mission's identifying fields into the report.
type MissionInfo struct {
	Path           string `json:"path"`
	Mode           string `json:"mode"`
	Objective      string `json:"objective"`
	MaxConcurrency int    `json:"max_concurrency"`
}

// Report is the serialized outcome of one mission run.
type Report struct {
	Mission         MissionInfo                   `json:"mission"`
	Status          string                        `json:"status"`
	StartedAt       time.Time                     `json:"started_at"`
	EndedAt         time.Time                     `json:"ended_at"`
	DurationSec     float64                       `json:"duration_sec"`
	FailedOrBlocked []string                      `json:"failed_or_blocked"`
	Tasks           map[string]*runner.TaskResult `json:"tasks"`
	Integrate       *runner.TaskResult            `json:"integrate"`
	Verify          *runner.TaskResult            `json:"verify"`
}

// Write persists the report to path atomically: the JSON is written to a
// temporary file in the destination directory and renamed into place, so a
// partially written report is never observable.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("creating report temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Read loads a previously written report.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}
