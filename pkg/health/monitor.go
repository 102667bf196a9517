package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/backfill/pkg/log"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/rs/zerolog"
)

// Monitor runs a checker on a fixed interval and reports the resulting
// status as a health component
type Monitor struct {
	component string
	checker   Checker
	config    Config
	logger    zerolog.Logger

	mu     sync.RWMutex
	status *Status

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewMonitor creates a monitor reporting checker results under component
func NewMonitor(component string, checker Checker, config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Retries <= 0 {
		config.Retries = 1
	}
	return &Monitor{
		component: component,
		checker:   checker,
		config:    config,
		logger:    log.WithComponent("health").With().Str("probe", component).Logger(),
		status:    NewStatus(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start starts the monitor loop
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Stop stops the monitor and waits for an in-flight check to finish
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	started := true
	m.startOnce.Do(func() { started = false })
	if started {
		<-m.doneCh
	}
}

// Status returns a copy of the current status
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.status
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	// Run initial check immediately
	m.check(ctx)

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-m.stopCh:
			return
		}
	}
}

// check performs a single health check and reports the result
func (m *Monitor) check(ctx context.Context) {
	checkCtx := ctx
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	result := m.checker.Check(checkCtx)

	m.mu.Lock()
	wasHealthy := m.status.Healthy
	m.status.Update(result, m.config)
	healthy := m.status.Healthy
	m.mu.Unlock()

	if healthy != wasHealthy {
		m.logger.Warn().
			Bool("healthy", healthy).
			Str("message", result.Message).
			Msg("Health changed")
	}

	message := ""
	if !healthy {
		message = result.Message
	}
	metrics.UpdateComponent(m.component, healthy, message)
}
