/*
Package scheduler manages the lifecycle of the backfill agent.

The agent is one background worker that runs backfill passes for as long as
the plugin is loaded. The pass itself belongs to the scheduler daemon and is
reached through the Backfiller interface; this package only owns starting,
stopping and reconfiguring the worker.

# Lifecycle

	┌──────────┐  Start   ┌──────────┐  StopAndJoin  ┌──────────┐
	│ stopped  │ ───────▶ │ running  │ ────────────▶ │ stopped  │
	└──────────┘          └──────────┘               └──────────┘
	                        │    ▲
	            Reconfigure │    │ Backfiller.Reconfigure()
	                        └────┘ between passes

Start, StopAndJoin and Reconfigure serialize on a single mutex that also
covers the check-then-act on the worker handle, so concurrent callers never
observe a half-started or half-stopped agent:

  - Start with a worker already running returns ErrAlreadyRunning.
  - StopAndJoin without a worker returns nil immediately.
  - Reconfigure without a worker returns nil and does nothing.

# Stopping

Each worker owns a context. StopAndJoin cancels it and waits on the worker's
done channel. The loop checks the context between passes and hands it to
Backfiller.RunPass, so the join latency is bounded by how quickly a pass
honors cancellation.

# Usage

	agent := scheduler.NewAgent(30 * time.Second)
	if err := agent.Start(backfiller); err != nil {
		logger.Warn().Err(err).Msg("backfill agent not started")
	}
	defer agent.StopAndJoin()

Pass errors and panics are logged and counted in
backfill_passes_total{result}. Errors and panics from
Backfiller.Reconfigure are counted in backfill_agent_reconfigures_total{result}.
Neither stops the agent.
*/
package scheduler
