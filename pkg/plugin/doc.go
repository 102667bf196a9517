/*
Package plugin is the entry surface of the backfill scheduling plugin.

The host daemon loads the plugin once and drives it through four calls:

	p, _ := plugin.New(cfg, backfiller, formula)
	p.Init()                      // start the backfill agent and predictor runtime
	p.InitialPriority(last, job)  // once per submitted job, on the admission path
	p.Reconfig()                  // on administrative reconfiguration
	p.Fini()                      // at unload

# Lifecycle

Init does nothing when scheduling is disabled. Otherwise it starts the
backfill agent and then initializes the embedded predictor runtime. A second
Init while the agent runs reports ErrAlreadyRunning without starting another
worker. A predictor runtime that fails to initialize is reported but not
fatal: every priority then falls back to the unadjusted formula.

Fini stops the agent, waits for its worker to exit and shuts the predictor
runtime down. When the agent is not running Fini is a no-op.

# Initial Priority

InitialPriority never fails and never blocks longer than the configured
predictor timeout. A job the predictor marks for delay gets half of the last
assigned priority as its baseline; every other job keeps it.

# Observability

The plugin keeps the "agent" and "predictor" health components current and
publishes lifecycle and decision events on its broker (see Events).
*/
package plugin
