package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/cjy5507/csmh/internal/mission"
)

// Task status values as they appear in mission reports.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusBlocked   = "blocked"
	StatusCancelled = "cancelled"
)

// TimeoutExitCode is recorded for attempts killed by their timeout budget.
const TimeoutExitCode = 124

// Inter-attempt backoff bounds for retried tasks.
const (
	baseRetryBackoff = 250 * time.Millisecond
	maxRetryBackoff  = 5 * time.Second
)

// AttemptLog records a single attempt of a task's command.
type AttemptLog struct {
	Attempt     int       `json:"attempt"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	DurationSec float64   `json:"duration_sec"`
	ExitCode    int       `json:"exit_code"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
	Error       string    `json:"error,omitempty"`
}

// TaskResult is the final outcome of a task across all its attempts. Blocked
// and cancelled tasks carry a result with zero attempts.
type TaskResult struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Attempts    int          `json:"attempts"`
	StartedAt   *time.Time   `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at"`
	DurationSec float64      `json:"duration_sec"`
	ExitCode    *int         `json:"exit_code"`
	Stdout      string       `json:"stdout"`
	Stderr      string       `json:"stderr"`
	Error       string       `json:"error,omitempty"`
	AttemptLogs []AttemptLog `json:"attempt_logs"`
}

// BlockedResult synthesizes the result for a task never attempted because an
// ancestor failed.
func BlockedResult(id, reason string) *TaskResult {
	return &TaskResult{
		ID:          id,
		Status:      StatusBlocked,
		Error:       reason,
		AttemptLogs: []AttemptLog{},
	}
}

// CancelledResult synthesizes the result for a task cancelled before or
// during its attempt.
func CancelledResult(id string) *TaskResult {
	return &TaskResult{
		ID:          id,
		Status:      StatusCancelled,
		Error:       "mission cancelled",
		AttemptLogs: []AttemptLog{},
	}
}

// Runner executes task attempts as external shell processes, enforcing the
// per-attempt timeout and the retry budget.
type Runner struct {
	logger hclog.Logger
}

// New creates a Runner. A nil logger is replaced with a no-op logger.
func New(logger hclog.Logger) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runner{logger: logger}
}

// Execute runs a task until an attempt exits zero or the retry budget is
// exhausted. Between failed attempts it sleeps an exponentially growing
// backoff, capped at maxRetryBackoff; cancellation cuts both attempts and
// backoff sleeps short.
func (r *Runner) Execute(ctx context.Context, t mission.Task) *TaskResult {
	maxAttempts := t.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseRetryBackoff
	policy.MaxInterval = maxRetryBackoff
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0 // retry budget is capped by attempt count, not time
	policy.Reset()

	logs := make([]AttemptLog, 0, 1)
	for i := 1; i <= maxAttempts; i++ {
		attempt := r.runAttempt(ctx, t.Command, t.TimeoutSec)
		attempt.Attempt = i
		logs = append(logs, attempt)

		if attempt.ExitCode == 0 || ctx.Err() != nil {
			break
		}
		if i < maxAttempts {
			r.logger.Debug("retrying task", "task", t.ID, "attempt", i, "exit_code", attempt.ExitCode)
			if !sleepCtx(ctx, policy.NextBackOff()) {
				break
			}
		}
	}

	final := logs[len(logs)-1]
	status := StatusFailed
	if final.ExitCode == 0 {
		status = StatusSucceeded
	}
	if ctx.Err() != nil && final.ExitCode != 0 {
		status = StatusCancelled
	}

	var total float64
	for _, l := range logs {
		total += l.DurationSec
	}

	started := logs[0].StartedAt
	ended := final.EndedAt
	code := final.ExitCode
	return &TaskResult{
		ID:          t.ID,
		Status:      status,
		Attempts:    len(logs),
		StartedAt:   &started,
		EndedAt:     &ended,
		DurationSec: round3(total),
		ExitCode:    &code,
		Stdout:      final.Stdout,
		Stderr:      final.Stderr,
		Error:       final.Error,
		AttemptLogs: logs,
	}
}

// runAttempt executes one attempt of command. On timeout the process group
// is killed and the attempt records exit code 124.
func (r *Runner) runAttempt(ctx context.Context, command string, timeoutSec int) AttemptLog {
	startedAt := time.Now().UTC()
	start := time.Now()

	finish := func(code int, stdout, stderr, errMsg string) AttemptLog {
		return AttemptLog{
			StartedAt:   startedAt,
			EndedAt:     time.Now().UTC(),
			DurationSec: round3(time.Since(start).Seconds()),
			ExitCode:    code,
			Stdout:      stdout,
			Stderr:      stderr,
			Error:       errMsg,
		}
	}

	cmd := shellCommand(command)
	wait, outBuf, errBuf, err := startDraining(cmd)
	if err != nil {
		return finish(1, "", "", err.Error())
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- wait() }()

	var timeout <-chan time.Time
	if timeoutSec > 0 {
		timer := time.NewTimer(time.Duration(timeoutSec) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case waitErr := <-waitCh:
		return finish(exitCode(waitErr), outBuf.String(), errBuf.String(), "")
	case <-timeout:
		killProcessGroup(cmd)
		<-waitCh
		return finish(TimeoutExitCode, outBuf.String(), errBuf.String(),
			fmt.Sprintf("timed out after %ds", timeoutSec))
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitCh
		return finish(1, outBuf.String(), errBuf.String(), "cancelled")
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first. Reports whether the
// full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
