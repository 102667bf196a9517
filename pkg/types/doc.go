/*
Package types defines the data shared by the backfill priority core.

Job is the resource manager's read-only job view. Nothing in this module
mutates it. Priority is the unsigned priority value handed in by the host
and returned to it.

A prediction produces an Outcome, a tagged value that is either Delay,
NoDelay or Unavailable. The bridge turns that into a Decision:

	Outcome       Decision     Baseline fed to the formula
	Delay         delay        last / 2
	NoDelay       no_delay     last
	Unavailable   unresolved   last

The Decision and OutcomeKind values are plain strings so they can be used
directly as log fields and metric labels.
*/
package types
