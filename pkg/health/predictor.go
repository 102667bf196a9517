package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/backfill/pkg/predictor"
	"github.com/cuemby/backfill/pkg/types"
)

// PredictorChecker probes a predictor with a fixed feature. Any resolved
// outcome, delay or not, counts as healthy.
type PredictorChecker struct {
	Predictor predictor.Predictor
	Feature   string
}

// NewPredictorChecker creates a checker probing p with feature
func NewPredictorChecker(p predictor.Predictor, feature string) *PredictorChecker {
	return &PredictorChecker{
		Predictor: p,
		Feature:   feature,
	}
}

// Check performs the predictor health check
func (c *PredictorChecker) Check(ctx context.Context) Result {
	start := time.Now()

	outcome := c.Predictor.Predict(ctx, c.Feature)
	if outcome.Decision() == types.DecisionUnresolved {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("predictor unavailable: %v", outcome.Err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("predictor answered %s", outcome.Decision()),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
