package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/backfill/pkg/log"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyRunning is returned by Start when a backfill agent exists
	ErrAlreadyRunning = errors.New("backfill agent already running")
	// ErrNoBackfiller is returned by Start when given no backfiller
	ErrNoBackfiller = errors.New("no backfiller provided")
)

// Backfiller is the scheduler daemon's backfill algorithm
type Backfiller interface {
	// RunPass performs one backfill pass. It should return promptly once
	// ctx is canceled.
	RunPass(ctx context.Context) error
	// Reconfigure re-reads scheduling parameters between passes
	Reconfigure() error
}

// PassFunc adapts a plain function to a Backfiller with no reconfiguration
type PassFunc func(ctx context.Context) error

// RunPass calls f(ctx)
func (f PassFunc) RunPass(ctx context.Context) error {
	return f(ctx)
}

// Reconfigure does nothing
func (f PassFunc) Reconfigure() error {
	return nil
}

// Agent owns the single background worker running backfill passes
type Agent struct {
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	worker *worker // nil when no agent is running

	passes atomic.Uint64
}

// worker is the handle of one running agent
type worker struct {
	runID      string
	backfiller Backfiller
	cancel     context.CancelFunc
	reconfigCh chan struct{}
	doneCh     chan struct{}
	logger     zerolog.Logger
}

// NewAgent creates an agent that waits interval between two passes
func NewAgent(interval time.Duration) *Agent {
	return &Agent{
		interval: interval,
		logger:   log.WithComponent("agent"),
	}
}

// Start spawns the backfill worker. It returns ErrAlreadyRunning, leaving
// the running worker untouched, if one already exists.
func (a *Agent) Start(b Backfiller) error {
	if b == nil {
		return ErrNoBackfiller
	}
	if a.interval <= 0 {
		return fmt.Errorf("invalid backfill interval %s", a.interval)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.worker != nil {
		a.logger.Debug().
			Str("run_id", a.worker.runID).
			Msg("Backfill thread already running, not starting another")
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	runID := uuid.New().String()
	w := &worker{
		runID:      runID,
		backfiller: b,
		cancel:     cancel,
		reconfigCh: make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
		logger:     a.logger.With().Str("run_id", runID).Logger(),
	}
	a.worker = w

	go a.run(ctx, w)

	metrics.AgentRunning.Set(1)
	w.logger.Info().Dur("interval", a.interval).Msg("Backfill agent started")
	return nil
}

// StopAndJoin signals the worker to stop and blocks until it has exited.
// It is a no-op when no worker is running.
func (a *Agent) StopAndJoin() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := a.worker
	if w == nil {
		return nil
	}

	w.logger.Info().Msg("Backfill agent shutting down")
	w.cancel()
	<-w.doneCh
	a.worker = nil

	metrics.AgentRunning.Set(0)
	w.logger.Info().Uint64("passes", a.passes.Load()).Msg("Backfill agent stopped")
	return nil
}

// Reconfigure asks the running worker to reload its parameters before its
// next pass. Pending requests are coalesced. Without a worker it does nothing.
func (a *Agent) Reconfigure() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.worker == nil {
		a.logger.Debug().Msg("No backfill agent running, reconfigure ignored")
		return nil
	}

	select {
	case a.worker.reconfigCh <- struct{}{}:
	default:
		// A request is already pending
	}
	return nil
}

// Running reports whether a worker exists
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.worker != nil
}

// RunID returns the ID of the running worker, empty when stopped
func (a *Agent) RunID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.worker == nil {
		return ""
	}
	return a.worker.runID
}

// Passes returns the number of passes completed since the agent was created
func (a *Agent) Passes() uint64 {
	return a.passes.Load()
}

// run is the main backfill loop
func (a *Agent) run(ctx context.Context, w *worker) {
	defer close(w.doneCh)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.pass(ctx, w)

	for {
		select {
		case <-ticker.C:
			a.pass(ctx, w)
		case <-w.reconfigCh:
			a.reconfigure(w)
		case <-ctx.Done():
			return
		}
	}
}

// reconfigure delivers a reconfiguration, absorbing errors and panics
func (a *Agent) reconfigure(w *worker) {
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			w.logger.Error().Interface("panic", r).Msg("Backfill reconfigure panicked")
		}
		metrics.AgentReconfiguresTotal.WithLabelValues(result).Inc()
	}()

	if err := w.backfiller.Reconfigure(); err != nil {
		result = "error"
		w.logger.Error().Err(err).Msg("Backfill reconfigure failed")
		return
	}
	w.logger.Info().Msg("Backfill agent reconfigured")
}

// pass performs one backfill pass, absorbing errors and panics
func (a *Agent) pass(ctx context.Context, w *worker) {
	if ctx.Err() != nil {
		return
	}

	timer := metrics.NewTimer()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			w.logger.Error().Interface("panic", r).Msg("Backfill pass panicked")
		}
		timer.ObserveDuration(metrics.BackfillPassDuration)
		metrics.BackfillPassesTotal.WithLabelValues(result).Inc()
		a.passes.Add(1)
	}()

	if err := w.backfiller.RunPass(ctx); err != nil {
		result = "error"
		w.logger.Warn().Err(err).Msg("Backfill pass failed")
	}
}
