/*
Package predictor answers one question for the priority bridge: should the
job keyed by this feature be delayed?

# Interface

	type Predictor interface {
		Predict(ctx context.Context, feature string) types.Outcome
	}

Predict never returns an error. Every answer is one of three outcomes:

	types.OutcomeDelay        the model asked for a delay
	types.OutcomeNoDelay      the model answered, no delay
	types.OutcomeUnavailable  no answer; Outcome.Err says why

Callers treat Unavailable exactly like NoDelay when choosing a priority. The
distinction exists for logs, metrics and health probes.

# ScriptPredictor

ScriptPredictor is the production implementation. It calls one function of
a predictor module hosted by the embedded interpreter:

	┌─────────────────┐  Invoke(module, function, feature)  ┌─────────────────────┐
	│ ScriptPredictor │ ──────────────────────────────────▶ │ embedded.Interpreter│
	└─────────────────┘ ◀────────────────────────────────── └─────────────────────┘
	        │                    Score or *RuntimeError
	        ▼
	  score == 1  → Delay
	  other score → NoDelay
	  any error   → Unavailable (counted by kind)

Only the exact score types.DelayScore (1) means delay. Any other integer,
bool or float the module returns is a NoDelay.

# Timeout

NewScriptPredictor takes a per-call timeout that is layered on the caller's
context. A zero timeout leaves the call bounded only by the caller. A call
that times out is reported as Unavailable right away. The interpreter keeps
running the abandoned call to completion, and the next Predict waits for it.

	rt := embedded.NewInterpreter(embedded.Options{})
	if err := rt.Initialize([]string{"/home/slurm"}); err != nil {
		return err
	}
	p := predictor.NewScriptPredictor(rt, "predict_func_v1", "priority", 2*time.Second)

	switch p.Predict(ctx, job.ScriptPath).Kind {
	case types.OutcomeDelay:
		// halve the baseline
	}

# Metrics

Each call is timed in backfill_predictor_call_duration_seconds. Failures
are counted in backfill_predictor_errors_total{kind}, labeled with the
embedded.ErrorKind, or "unknown" for errors from other runtimes.

# Testing

Func adapts a plain function to the interface, which is how tests script
outcomes without an interpreter:

	p := predictor.Func(func(ctx context.Context, feature string) types.Outcome {
		return types.Delay(types.DelayScore)
	})
*/
package predictor
