package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjy5507/csmh/internal/mission"
	"github.com/cjy5507/csmh/internal/report"
	"github.com/cjy5507/csmh/internal/runner"
)

func load(t *testing.T, src string) *mission.Mission {
	t.Helper()
	m, err := mission.Parse("test-mission.json", []byte(src), mission.Defaults{})
	if err != nil {
		t.Fatalf("parsing mission: %v", err)
	}
	return m
}

func TestRunSucceedsWithPhases(t *testing.T) {
	out := filepath.Join(t.TempDir(), "order.txt")
	m := load(t, `{
		"mode": "fast",
		"objective": "phase gate ordering",
		"tasks": [
			{"id": "a", "command": "echo a >> `+out+`"},
			{"id": "b", "command": "echo b >> `+out+`", "depends_on": ["a"]}
		],
		"integrate": {"command": "echo integrate >> `+out+`"},
		"verify": {"command": "grep -c . `+out+` | grep -qx 3"}
	}`)

	rep, err := New().Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded (failed_or_blocked: %v)", rep.Status, rep.FailedOrBlocked)
	}
	if len(rep.FailedOrBlocked) != 0 {
		t.Errorf("failed_or_blocked = %v, want empty", rep.FailedOrBlocked)
	}
	if rep.Integrate == nil || rep.Integrate.Status != runner.StatusSucceeded {
		t.Errorf("integrate result = %+v, want succeeded", rep.Integrate)
	}
	if rep.Verify == nil || rep.Verify.Status != runner.StatusSucceeded {
		t.Errorf("verify result = %+v, want succeeded", rep.Verify)
	}
	if rep.Mission.Mode != "fast" || rep.Mission.Objective != "phase gate ordering" {
		t.Errorf("mission info = %+v", rep.Mission)
	}
	if rep.DurationSec < 0 {
		t.Errorf("duration_sec = %f, want >= 0", rep.DurationSec)
	}
}

func TestRunWithoutPhases(t *testing.T) {
	m := load(t, `{"tasks": [{"id": "only", "command": "true"}]}`)

	rep, err := New().Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", rep.Status)
	}
	if rep.Integrate != nil || rep.Verify != nil {
		t.Errorf("undeclared phases should be nil, got integrate=%v verify=%v",
			rep.Integrate, rep.Verify)
	}
}

func TestRunTaskFailureSkipsPhases(t *testing.T) {
	phaseMark := filepath.Join(t.TempDir(), "phase-ran")
	m := load(t, `{
		"tasks": [
			{"id": "bad", "command": "exit 1"},
			{"id": "child", "command": "true", "depends_on": ["bad"]},
			{"id": "free", "command": "true"}
		],
		"integrate": {"command": "touch `+phaseMark+`"}
	}`)

	rep, err := New().Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusFailed {
		t.Fatalf("status = %s, want failed", rep.Status)
	}
	if rep.Integrate != nil {
		t.Error("integrate ran despite task failures")
	}
	want := []string{"bad", "child"}
	if len(rep.FailedOrBlocked) != len(want) {
		t.Fatalf("failed_or_blocked = %v, want %v", rep.FailedOrBlocked, want)
	}
	for i, id := range want {
		if rep.FailedOrBlocked[i] != id {
			t.Errorf("failed_or_blocked[%d] = %s, want %s", i, rep.FailedOrBlocked[i], id)
		}
	}
	if rep.Tasks["bad"].Status != runner.StatusFailed {
		t.Errorf("task bad status = %s, want failed", rep.Tasks["bad"].Status)
	}
	if rep.Tasks["child"].Status != runner.StatusBlocked {
		t.Errorf("task child status = %s, want blocked", rep.Tasks["child"].Status)
	}
	if rep.Tasks["free"].Status != runner.StatusSucceeded {
		t.Errorf("task free status = %s, want succeeded", rep.Tasks["free"].Status)
	}
}

func TestRunIntegrateFailureSkipsVerify(t *testing.T) {
	verifyMark := filepath.Join(t.TempDir(), "verify-ran")
	m := load(t, `{
		"tasks": [{"id": "a", "command": "true"}],
		"integrate": {"command": "exit 2"},
		"verify": {"command": "touch `+verifyMark+`"}
	}`)

	rep, err := New().Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusFailed {
		t.Fatalf("status = %s, want failed", rep.Status)
	}
	if rep.Integrate == nil || rep.Integrate.Status != runner.StatusFailed {
		t.Errorf("integrate = %+v, want failed", rep.Integrate)
	}
	if rep.Verify != nil {
		t.Error("verify ran despite integrate failure")
	}
	if len(rep.FailedOrBlocked) != 1 || rep.FailedOrBlocked[0] != "integrate" {
		t.Errorf("failed_or_blocked = %v, want [integrate]", rep.FailedOrBlocked)
	}
}

func TestRunVerifyFailure(t *testing.T) {
	m := load(t, `{
		"tasks": [{"id": "a", "command": "true"}],
		"verify": {"command": "exit 1"}
	}`)

	rep, err := New().Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusFailed {
		t.Fatalf("status = %s, want failed", rep.Status)
	}
	if len(rep.FailedOrBlocked) != 1 || rep.FailedOrBlocked[0] != "verify" {
		t.Errorf("failed_or_blocked = %v, want [verify]", rep.FailedOrBlocked)
	}
}

func TestRunCancellation(t *testing.T) {
	phaseMark := filepath.Join(t.TempDir(), "phase-ran")
	m := load(t, `{
		"tasks": [{"id": "slow", "command": "sleep 30"}],
		"integrate": {"command": "touch `+phaseMark+`"}
	}`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	rep, err := New().Run(ctx, m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("cancellation did not stop the mission promptly")
	}
	if rep.Status != report.StatusFailed {
		t.Errorf("status = %s, want failed after cancellation", rep.Status)
	}
	if rep.Integrate != nil {
		t.Error("integrate ran after cancellation")
	}
	if len(rep.FailedOrBlocked) != 1 || rep.FailedOrBlocked[0] != "slow" {
		t.Errorf("failed_or_blocked = %v, want [slow]", rep.FailedOrBlocked)
	}
}

func TestRunPhaseRetries(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "marker")
	m := load(t, `{
		"tasks": [{"id": "a", "command": "true"}],
		"verify": {"command": "test -f `+marker+` || { touch `+marker+`; exit 1; }", "retries": 1}
	}`)

	rep, err := New().Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded (verify: %+v)", rep.Status, rep.Verify)
	}
	if rep.Verify.Attempts != 2 {
		t.Errorf("verify attempts = %d, want 2", rep.Verify.Attempts)
	}
}
