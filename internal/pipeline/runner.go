package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrRunSuperseded is returned to a run cancelled by a newer submission
	// for the same session.
	ErrRunSuperseded = errors.New("run superseded by a newer request")

	// ErrRunTimeout is returned when a run exceeds the runner's timeout.
	ErrRunTimeout = errors.New("optimization timeout exceeded")
)

// RunStatus is the lifecycle stage reported to notifiers.
type RunStatus string

const (
	StatusStarted    RunStatus = "started"
	StatusCompleted  RunStatus = "completed"
	StatusInfeasible RunStatus = "infeasible"
	StatusCancelled  RunStatus = "cancelled"
	StatusFailed     RunStatus = "failed"
)

// StatusEvent describes one transition of a run.
type StatusEvent struct {
	RunID     string        `json:"run_id"`
	SessionID string        `json:"session_id"`
	Status    RunStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Notifier receives run status events. Implementations must not block.
type Notifier interface {
	NotifyRunStatus(event StatusEvent)
}

type activeRun struct {
	id         string
	cancel     context.CancelFunc
	superseded bool
}

// Runner executes pipeline runs off the caller's goroutine. Each session has
// at most one live run: submitting again cancels the previous one, so the
// last request wins.
type Runner struct {
	run       func(ctx context.Context, req Request) (*Report, error)
	timeout   time.Duration
	notifiers []Notifier
	logger    *logrus.Entry

	mu     sync.Mutex
	active map[string]*activeRun
}

func NewRunner(p *Pipeline, timeout time.Duration, logger *logrus.Logger, notifiers ...Notifier) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{
		run:       p.Run,
		timeout:   timeout,
		notifiers: notifiers,
		logger:    logger.WithField("component", "runner"),
		active:    make(map[string]*activeRun),
	}
}

type outcome struct {
	report *Report
	err    error
}

// Submit starts a run for sessionID, cancelling any run still in flight for
// that session, and waits for it to finish. ctx cancellation (for example a
// dropped HTTP client) also cancels the run.
func (r *Runner) Submit(ctx context.Context, sessionID string, req Request) (*Report, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	runID := uuid.NewString()
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	if r.timeout > 0 {
		runCtx, cancel = withTimeout(runCtx, cancel, r.timeout)
	}
	current := &activeRun{id: runID, cancel: cancel}

	r.mu.Lock()
	r.supersedeLocked(sessionID, runID)
	r.active[sessionID] = current
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.active[sessionID] == current {
			delete(r.active, sessionID)
		}
		r.mu.Unlock()
		cancel()
	}()

	r.notify(StatusEvent{RunID: runID, SessionID: sessionID, Status: StatusStarted})

	done := make(chan outcome, 1)
	go func() {
		report, err := r.run(runCtx, req)
		done <- outcome{report: report, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		out = outcome{err: runCtx.Err()}
	}

	elapsed := time.Since(start)
	event := StatusEvent{RunID: runID, SessionID: sessionID, Duration: elapsed}

	if out.err != nil {
		r.mu.Lock()
		superseded := current.superseded
		r.mu.Unlock()

		err := out.err
		switch {
		case superseded:
			err = fmt.Errorf("%w: %v", ErrRunSuperseded, out.err)
			event.Status = StatusCancelled
		case errors.Is(out.err, context.DeadlineExceeded):
			err = fmt.Errorf("%w after %s", ErrRunTimeout, r.timeout)
			event.Status = StatusFailed
		case errors.Is(out.err, context.Canceled):
			event.Status = StatusCancelled
		default:
			event.Status = StatusFailed
		}
		event.Error = err.Error()
		r.notify(event)

		r.logger.WithFields(logrus.Fields{
			"run_id":     runID,
			"session_id": sessionID,
			"status":     event.Status,
		}).WithError(err).Warn("Run did not complete")
		return nil, err
	}

	out.report.RunID = runID
	out.report.SessionID = sessionID

	event.Status = StatusCompleted
	if !out.report.Lineup.Feasible {
		event.Status = StatusInfeasible
	}
	r.notify(event)

	r.logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"session_id":  sessionID,
		"status":      event.Status,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("Run finished")

	return out.report, nil
}

// Supersede cancels the in-flight run for sessionID, if any, on behalf of a
// newer request served without a run (a cached report). The displaced caller
// gets ErrRunSuperseded.
func (r *Runner) Supersede(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supersedeLocked(sessionID, "")
}

func (r *Runner) supersedeLocked(sessionID, byRunID string) bool {
	prev, ok := r.active[sessionID]
	if !ok {
		return false
	}
	prev.superseded = true
	prev.cancel()
	r.logger.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"previous_id": prev.id,
		"run_id":      byRunID,
	}).Info("Cancelling superseded run")
	return true
}

// ActiveRuns returns the number of sessions with a run in flight.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Runner) notify(event StatusEvent) {
	event.Timestamp = time.Now().UTC()
	for _, n := range r.notifiers {
		n.NotifyRunStatus(event)
	}
}

// withTimeout layers a deadline over ctx; the returned cancel releases both.
func withTimeout(ctx context.Context, parent context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	timed, cancel := context.WithTimeout(ctx, d)
	return timed, func() {
		cancel()
		parent()
	}
}
