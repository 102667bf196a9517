/*
Package log provides structured logging for the backfill plugin using zerolog.

The package wraps a single global zerolog.Logger. The host calls Init once
while loading plugin configuration; every component then derives a child
logger that carries its own context fields.

# Configuration

  - Level: debug, info, warn or error (unknown values fall back to info)
  - JSONOutput: JSON lines for log shippers, console output otherwise
  - Output: any io.Writer, stdout when nil

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

	logger := log.WithComponent("priority")
	logger.Info().
		Uint32("job_id", 42).
		Uint32("last_priority", 1000).
		Uint32("priority", 500).
		Msg("job delayed")

Context helpers:

  - WithComponent: agent, predictor, priority, plugin
  - WithJobID: per-job decision logs
  - WithRunID: the uuid assigned to one run of the backfill agent

Until Init is called the global logger writes JSON to stdout, so packages
are usable from tests without explicit setup.
*/
package log
