package predictor

import (
	"context"
	"time"

	"github.com/cuemby/backfill/pkg/embedded"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/cuemby/backfill/pkg/types"
)

// Predictor decides whether the job keyed by feature should be delayed
type Predictor interface {
	Predict(ctx context.Context, feature string) types.Outcome
}

// Runtime is the subset of the embedded interpreter a ScriptPredictor uses
type Runtime interface {
	Invoke(ctx context.Context, module, function, arg string) (embedded.Score, error)
}

// ScriptPredictor calls a function of an embedded predictor module
type ScriptPredictor struct {
	runtime  Runtime
	module   string
	function string
	timeout  time.Duration
}

// NewScriptPredictor creates a predictor calling module.function through
// runtime. A zero timeout leaves calls bounded only by the caller's context.
func NewScriptPredictor(runtime Runtime, module, function string, timeout time.Duration) *ScriptPredictor {
	return &ScriptPredictor{
		runtime:  runtime,
		module:   module,
		function: function,
		timeout:  timeout,
	}
}

// Module returns the predictor module name
func (p *ScriptPredictor) Module() string {
	return p.module
}

// Function returns the predictor function name
func (p *ScriptPredictor) Function() string {
	return p.function
}

// Predict maps the delay score onto Delay, any other score onto NoDelay and
// every runtime failure onto Unavailable
func (p *ScriptPredictor) Predict(ctx context.Context, feature string) types.Outcome {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	timer := metrics.NewTimer()
	score, err := p.runtime.Invoke(ctx, p.module, p.function, feature)
	timer.ObserveDuration(metrics.PredictorCallDuration)

	if err != nil {
		kind := string(embedded.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		metrics.PredictorErrorsTotal.WithLabelValues(kind).Inc()
		return types.Unavailable(err)
	}

	if int64(score) == types.DelayScore {
		return types.Delay(int64(score))
	}
	return types.NoDelay(int64(score))
}

// Func adapts a plain function to a Predictor
type Func func(ctx context.Context, feature string) types.Outcome

// Predict calls f
func (f Func) Predict(ctx context.Context, feature string) types.Outcome {
	return f(ctx, feature)
}
