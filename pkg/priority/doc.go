/*
Package priority chooses the baseline initial priority of a new job.

The host scheduler computes every job's priority with its own formula. The
bridge sits in front of that formula and decides, per job, which baseline
the formula receives: the last assigned priority, or half of it when the
predictor marks the job for delay. The formula is always the last step, so
the bridge can hold or halve its input but never raise it.

# Decision Flow

	              job
	               │
	     ScriptPath empty? ──yes──▶ Unresolved (predictor not called)
	               │ no
	               ▼
	     Predictor.Predict(ctx, ScriptPath)
	               │
	   ┌───────────┼──────────────┐
	   ▼           ▼              ▼
	 Delay      NoDelay       Unavailable
	   │           │              │
	 last/2       last           last
	   └───────────┴──────┬───────┘
	                      ▼
	              Formula(baseline, job)

Only the script path keys a prediction. A job without one is unresolved
even when it carries an argument vector.

# Failure Handling

No predictor failure reaches the caller. An unavailable predictor, a nil
predictor and a panicking predictor all resolve to "not adjusted" and are
logged with the job ID, and with the module, function and error kind when
the predictor is a ScriptPredictor. InitialPriority has no error return.

# Logging and Metrics

Every decision is logged at info with job_id, last_priority and the chosen
baseline as priority. Decisions are counted in
backfill_priority_decisions_total{decision}.

# Usage

	bridge := priority.NewBridge(pred, hostFormula)
	bridge.SetObserver(func(job *types.Job, d types.Decision, last, baseline types.Priority, o types.Outcome) {
		// publish an event
	})

	prio := bridge.InitialPriority(ctx, lastPriority, job)

A nil formula is Identity, which returns the baseline unchanged.
*/
package priority
