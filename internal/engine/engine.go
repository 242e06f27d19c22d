// Package engine drives a mission end to end: scheduling, the
// integrate/verify phase gate, report assembly, and run-history recording.
package engine

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/cjy5507/csmh/internal/events"
	"github.com/cjy5507/csmh/internal/history"
	"github.com/cjy5507/csmh/internal/mission"
	"github.com/cjy5507/csmh/internal/report"
	"github.com/cjy5507/csmh/internal/runner"
	"github.com/cjy5507/csmh/internal/scheduler"
)

// Engine runs validated missions to a terminal report.
type Engine struct {
	exec   scheduler.Executor
	bus    *events.Bus
	logger hclog.Logger
	store  *history.Store
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus attaches an event bus for lifecycle events.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithLogger attaches a diagnostics logger.
func WithLogger(logger hclog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStore attaches a run-history store; every completed run is recorded.
func WithStore(store *history.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithExecutor overrides the task executor (tests).
func WithExecutor(exec scheduler.Executor) Option {
	return func(e *Engine) { e.exec = exec }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = hclog.NewNullLogger()
	}
	if e.exec == nil {
		e.exec = runner.New(e.logger)
	}
	return e
}

// Run executes the mission and returns its report. Task failures never
// surface as an error; they are captured in the report. Cancellation also
// yields a report, with the mission marked failed.
func (e *Engine) Run(ctx context.Context, m *mission.Mission) (*report.Report, error) {
	startedAt := time.Now().UTC()
	start := time.Now()

	sched := scheduler.New(m, e.exec, scheduler.WithBus(e.bus), scheduler.WithLogger(e.logger))
	results, err := sched.Run(ctx)
	if err != nil {
		return nil, err
	}

	// failed_or_blocked collects, in declaration order, every task that did
	// not succeed: failed, blocked, and cancelled alike.
	failedOrBlocked := []string{}
	for _, t := range m.Tasks {
		if res, ok := results[t.ID]; !ok || res.Status != runner.StatusSucceeded {
			failedOrBlocked = append(failedOrBlocked, t.ID)
		}
	}

	// Phase gate: integration and verification run only when every task
	// succeeded and the mission was not cancelled.
	var integrateRes, verifyRes *runner.TaskResult
	if len(failedOrBlocked) == 0 && ctx.Err() == nil {
		integrateRes = e.runPhase(ctx, m.Integrate)
		if integrateRes != nil && integrateRes.Status != runner.StatusSucceeded {
			failedOrBlocked = append(failedOrBlocked, "integrate")
		} else {
			verifyRes = e.runPhase(ctx, m.Verify)
			if verifyRes != nil && verifyRes.Status != runner.StatusSucceeded {
				failedOrBlocked = append(failedOrBlocked, "verify")
			}
		}
	}

	status := report.StatusSucceeded
	if len(failedOrBlocked) > 0 || ctx.Err() != nil {
		status = report.StatusFailed
	}

	rep := &report.Report{
		Mission: report.MissionInfo{
			Path:           m.Path,
			Mode:           string(m.Mode),
			Objective:      m.Objective,
			MaxConcurrency: m.MaxConcurrency,
		},
		Status:          status,
		StartedAt:       startedAt,
		EndedAt:         time.Now().UTC(),
		DurationSec:     round3(time.Since(start).Seconds()),
		FailedOrBlocked: failedOrBlocked,
		Tasks:           results,
		Integrate:       integrateRes,
		Verify:          verifyRes,
	}

	e.publish(events.MissionFinished{Status: status, DurationSec: rep.DurationSec})

	if e.store != nil {
		if _, err := e.store.SaveRun(context.WithoutCancel(ctx), rep); err != nil {
			e.logger.Warn("recording run history failed", "error", err)
		}
	}

	return rep, nil
}

// runPhase executes one gate command through the task runner. A nil phase
// yields a nil result, meaning the gate was not declared.
func (e *Engine) runPhase(ctx context.Context, p *mission.Phase) *runner.TaskResult {
	if p == nil {
		return nil
	}

	e.publish(events.PhaseStarted{Name: p.Name})
	res := e.exec.Execute(ctx, mission.Task{
		ID:         p.Name,
		Command:    p.Command,
		TimeoutSec: p.TimeoutSec,
		Retries:    p.Retries,
	})
	e.publish(events.PhaseFinished{
		Name:        p.Name,
		Status:      res.Status,
		Attempts:    res.Attempts,
		DurationSec: res.DurationSec,
	})
	return res
}

func (e *Engine) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(events.TopicMission, event)
	}
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
