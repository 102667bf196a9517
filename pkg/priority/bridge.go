package priority

import (
	"context"
	"fmt"

	"github.com/cuemby/backfill/pkg/embedded"
	"github.com/cuemby/backfill/pkg/log"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/cuemby/backfill/pkg/predictor"
	"github.com/cuemby/backfill/pkg/types"
	"github.com/rs/zerolog"
)

// Formula is the host's default priority formula. It is always applied last,
// to the baseline chosen by the bridge.
type Formula func(baseline types.Priority, job *types.Job) types.Priority

// Identity returns the baseline unchanged
func Identity(baseline types.Priority, _ *types.Job) types.Priority {
	return baseline
}

// Observer is notified of every decision, for events and tests
type Observer func(job *types.Job, decision types.Decision, last, baseline types.Priority, outcome types.Outcome)

// Bridge consults a predictor to choose the baseline priority of new jobs
type Bridge struct {
	predictor predictor.Predictor
	formula   Formula
	observer  Observer
	logger    zerolog.Logger
}

// NewBridge creates a bridge. A nil formula is treated as Identity.
func NewBridge(p predictor.Predictor, formula Formula) *Bridge {
	if formula == nil {
		formula = Identity
	}
	return &Bridge{
		predictor: p,
		formula:   formula,
		logger:    log.WithComponent("priority"),
	}
}

// SetObserver registers a function called after each decision
func (b *Bridge) SetObserver(o Observer) {
	b.observer = o
}

// Decide asks the predictor about job
func (b *Bridge) Decide(ctx context.Context, job *types.Job) types.Decision {
	decision, _ := b.decide(ctx, job)
	return decision
}

func (b *Bridge) decide(ctx context.Context, job *types.Job) (types.Decision, types.Outcome) {
	feature := job.Feature()
	if feature == "" {
		b.logger.Info().Uint32("job_id", jobID(job)).Msg("no script path information")
		return types.DecisionUnresolved, types.Unavailable(nil)
	}
	if b.predictor == nil {
		return types.DecisionUnresolved, types.Unavailable(nil)
	}

	outcome := b.predict(ctx, feature)
	if outcome.Kind == types.OutcomeUnavailable {
		event := b.logger.Warn().
			Uint32("job_id", jobID(job)).
			Str("script_path", feature).
			Err(outcome.Err)
		if kind := embedded.KindOf(outcome.Err); kind != "" {
			event = event.Str("kind", string(kind))
		}
		if sp, ok := b.predictor.(*predictor.ScriptPredictor); ok {
			event = event.Str("module", sp.Module()).Str("function", sp.Function())
		}
		event.Msg("Predictor unavailable, priority not adjusted")
	}
	return outcome.Decision(), outcome
}

// InitialPriority returns the priority of a newly submitted job: the
// formula applied to half of last when the predictor asks for a delay, and
// to last otherwise. Predictor failures never surface to the caller.
func (b *Bridge) InitialPriority(ctx context.Context, last types.Priority, job *types.Job) types.Priority {
	if job == nil {
		return b.formula(last, job)
	}

	decision, outcome := b.decide(ctx, job)

	baseline := last
	switch decision {
	case types.DecisionDelay:
		baseline = last / 2
		b.logger.Info().
			Uint32("job_id", job.ID).
			Uint32("last_priority", uint32(last)).
			Uint32("priority", uint32(baseline)).
			Msg("Job delayed")
	case types.DecisionNoDelay:
		b.logger.Info().
			Uint32("job_id", job.ID).
			Uint32("last_priority", uint32(last)).
			Uint32("priority", uint32(baseline)).
			Msg("Job not delayed")
	default:
		b.logger.Info().
			Uint32("job_id", job.ID).
			Uint32("last_priority", uint32(last)).
			Uint32("priority", uint32(baseline)).
			Msg("Job priority not adjusted")
	}

	metrics.PriorityDecisionsTotal.WithLabelValues(string(decision)).Inc()
	if b.observer != nil {
		b.observer(job, decision, last, baseline, outcome)
	}

	return b.formula(baseline, job)
}

// predict shields the admission path from a panicking predictor
func (b *Bridge) predict(ctx context.Context, feature string) (outcome types.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = types.Unavailable(fmt.Errorf("predictor panic: %v", r))
		}
	}()
	return b.predictor.Predict(ctx, feature)
}

func jobID(job *types.Job) uint32 {
	if job == nil {
		return 0
	}
	return job.ID
}
