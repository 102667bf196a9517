package plugin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cuemby/backfill/pkg/config"
	"github.com/cuemby/backfill/pkg/embedded"
	"github.com/cuemby/backfill/pkg/events"
	"github.com/cuemby/backfill/pkg/health"
	"github.com/cuemby/backfill/pkg/log"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/cuemby/backfill/pkg/predictor"
	"github.com/cuemby/backfill/pkg/priority"
	"github.com/cuemby/backfill/pkg/scheduler"
	"github.com/cuemby/backfill/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// Name is the human readable plugin name
	Name = "Backfill Scheduler plugin"
	// Type is the plugin type string the host loads the plugin by
	Type = "sched/backfill"
)

// Plugin is the surface the host daemon drives: Init at load, Fini at
// unload, Reconfig on administrative reconfiguration and InitialPriority for
// every submitted job
type Plugin struct {
	cfg        *config.Config
	backfiller scheduler.Backfiller

	agent     *scheduler.Agent
	runtime   *embedded.Interpreter
	predictor predictor.Predictor
	bridge    *priority.Bridge
	broker    *events.Broker
	logger    zerolog.Logger

	probeMu sync.Mutex
	probe   *health.Monitor
}

// New builds a plugin around the host's backfill algorithm and priority
// formula. Nothing is started until Init.
func New(cfg *config.Config, backfiller scheduler.Backfiller, formula priority.Formula) (*Plugin, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plugin configuration: %w", err)
	}

	runtime := embedded.NewInterpreter(embedded.Options{Watch: cfg.Predictor.Watch})
	pred := predictor.NewScriptPredictor(runtime, cfg.Predictor.Module, cfg.Predictor.Function, cfg.Predictor.Timeout)

	broker := events.NewBroker()
	broker.Start()

	p := &Plugin{
		cfg:        cfg,
		backfiller: backfiller,
		agent:      scheduler.NewAgent(cfg.Backfill.Interval),
		runtime:    runtime,
		predictor:  pred,
		bridge:     priority.NewBridge(pred, formula),
		broker:     broker,
		logger:     log.WithComponent("plugin"),
	}
	p.bridge.SetObserver(p.observe)

	return p, nil
}

// Init starts the backfill agent and initializes the predictor runtime. It
// does nothing when scheduling is disabled. Failures are reported but leave
// the plugin usable: priorities fall back to the formula.
func (p *Plugin) Init() error {
	if p.cfg.SchedulingDisabled {
		p.logger.Info().Msg("Scheduling disabled, backfill plugin idle")
		return nil
	}

	p.logger.Info().Str("type", Type).Msg("Backfill scheduler plugin loaded")

	var errs []error

	if err := p.agent.Start(p.backfiller); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			p.logger.Warn().Msg("Backfill thread already running, not starting another")
		} else {
			p.logger.Error().Err(err).Msg("Failed to start backfill agent")
			metrics.UpdateComponent(metrics.ComponentAgent, false, err.Error())
		}
		errs = append(errs, err)
	} else {
		metrics.UpdateComponent(metrics.ComponentAgent, true, "")
		p.publish(events.EventAgentStarted, "backfill agent started", map[string]string{
			"run_id": p.agent.RunID(),
		})
	}

	if err := p.runtime.Initialize(p.cfg.Predictor.SearchPaths); err != nil {
		p.logger.Error().Err(err).Msg("Failed to initialize predictor runtime")
		metrics.UpdateComponent(metrics.ComponentPredictor, false, err.Error())
		p.publish(events.EventPredictorUnavailable, err.Error(), nil)
		errs = append(errs, err)
	} else {
		metrics.UpdateComponent(metrics.ComponentPredictor, true, "")
		p.publish(events.EventPredictorReady, "predictor runtime initialized", map[string]string{
			"module":   p.cfg.Predictor.Module,
			"function": p.cfg.Predictor.Function,
		})
		p.startProbe()
	}

	return errors.Join(errs...)
}

// Fini stops and joins the backfill agent, then shuts the predictor runtime
// down. It does nothing when the agent is not running.
func (p *Plugin) Fini() error {
	if !p.agent.Running() {
		return nil
	}

	p.logger.Info().Msg("Backfill scheduler plugin shutting down")

	var errs []error
	if err := p.agent.StopAndJoin(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop backfill agent: %w", err))
	}
	metrics.UpdateComponent(metrics.ComponentAgent, false, "stopped")
	p.publish(events.EventAgentStopped, "backfill agent stopped", nil)

	p.stopProbe()
	if err := p.runtime.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down predictor runtime: %w", err))
	}
	metrics.UpdateComponent(metrics.ComponentPredictor, false, "shut down")
	p.publish(events.EventPredictorShutdown, "predictor runtime shut down", nil)

	return errors.Join(errs...)
}

// Reconfig forwards a reconfiguration to the backfill agent
func (p *Plugin) Reconfig() error {
	if err := p.agent.Reconfigure(); err != nil {
		return err
	}
	p.publish(events.EventAgentReconfigured, "backfill agent reconfiguration requested", nil)
	return nil
}

// InitialPriority returns the initial priority of a newly submitted job
func (p *Plugin) InitialPriority(last types.Priority, job *types.Job) types.Priority {
	return p.bridge.InitialPriority(context.Background(), last, job)
}

// Running reports whether the backfill agent is running
func (p *Plugin) Running() bool {
	return p.agent.Running()
}

// Passes returns the number of backfill passes run so far
func (p *Plugin) Passes() uint64 {
	return p.agent.Passes()
}

// Events returns the plugin's event broker
func (p *Plugin) Events() *events.Broker {
	return p.broker
}

// Close releases the event broker. Call it after Fini, once the plugin is
// no longer used.
func (p *Plugin) Close() {
	p.stopProbe()
	p.broker.Stop()
}

// startProbe starts the background predictor health probe when configured
func (p *Plugin) startProbe() {
	probe := p.cfg.Predictor.Probe
	if probe.Interval <= 0 {
		return
	}

	p.probeMu.Lock()
	defer p.probeMu.Unlock()
	if p.probe != nil {
		return
	}

	p.probe = health.NewMonitor(metrics.ComponentPredictor,
		health.NewPredictorChecker(p.predictor, probe.Feature),
		health.Config{
			Interval: probe.Interval,
			Timeout:  p.cfg.Predictor.Timeout,
			Retries:  probe.Retries,
		})
	p.probe.Start()
}

func (p *Plugin) stopProbe() {
	p.probeMu.Lock()
	defer p.probeMu.Unlock()
	if p.probe != nil {
		p.probe.Stop()
		p.probe = nil
	}
}

// observe publishes decision events
func (p *Plugin) observe(job *types.Job, decision types.Decision, last, baseline types.Priority, outcome types.Outcome) {
	jobID := strconv.FormatUint(uint64(job.ID), 10)
	switch {
	case decision == types.DecisionDelay:
		p.publish(events.EventPriorityDelayed, "job delayed", map[string]string{
			"job_id":        jobID,
			"last_priority": strconv.FormatUint(uint64(last), 10),
			"priority":      strconv.FormatUint(uint64(baseline), 10),
		})
	case outcome.Err != nil:
		p.publish(events.EventPredictorUnavailable, outcome.Err.Error(), map[string]string{
			"job_id": jobID,
			"kind":   string(embedded.KindOf(outcome.Err)),
		})
	}
}

func (p *Plugin) publish(t events.EventType, msg string, metadata map[string]string) {
	p.broker.Publish(&events.Event{
		Type:     t,
		Message:  msg,
		Metadata: metadata,
	})
}
