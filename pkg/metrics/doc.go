/*
Package metrics exposes Prometheus metrics and health endpoints for the
backfill plugin.

All collectors are package-level variables registered on the default
Prometheus registry at init time, so any package can record into them
without plumbing a registry around.

# Metrics

Agent:

  - backfill_agent_running (gauge): 1 while the backfill agent runs
  - backfill_passes_total{result} (counter): passes by ok / error / panic
  - backfill_pass_duration_seconds (histogram)
  - backfill_agent_reconfigures_total (counter)

Priority:

  - backfill_priority_decisions_total{decision} (counter): delay,
    no_delay, unresolved

Predictor:

  - backfill_predictor_call_duration_seconds (histogram): buckets start
    at 500µs since calls sit on the job admission path
  - backfill_predictor_errors_total{kind} (counter)
  - backfill_predictor_reloads_total (counter)

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PredictorCallDuration)

# Health

Components report their state with UpdateComponent. The plugin reports
ComponentAgent and ComponentPredictor; both are critical for readiness.

	metrics.UpdateComponent(metrics.ComponentPredictor, false, "module not found")

Mux serves /metrics, /health, /ready and /live.
*/
package metrics
