/*
Package embedded hosts the predictor runtime: an in-process Go interpreter
(yaegi) that loads a predictor module from source and calls one function in
it.

# Module layout

Initialize takes an ordered list of search paths. For each Invoke the
module is looked up in the first path that has it, in either layout:

	<path>/src/<module>/*.go    GOPATH layout
	<path>/<module>/*.go        flat layout

A predictor module is an ordinary Go package using only the standard
library:

	package predict_func_v1

	import "strings"

	func priority(scriptPath string) int {
		if strings.HasPrefix(scriptPath, "/scratch/") {
			return 1
		}
		return 0
	}

The function takes one string and returns an integer, a bool or a float,
optionally followed by an error.

# Errors

Every failure is a *RuntimeError whose Kind says what went wrong and which
matches the corresponding sentinel with errors.Is:

	KindNotInitialized      ErrNotInitialized      Invoke outside Initialize/Shutdown
	KindModuleNotFound      ErrModuleNotFound      missing or uncompilable module
	KindFunctionNotFound    ErrFunctionNotFound    missing, not callable, wrong signature
	KindArgumentConversion  ErrArgumentConversion  argument cannot be passed
	KindCallFailed          ErrCallFailed          returned error, panic, timeout
	KindBadResult           ErrBadResult           result is not a number or bool

Panics raised by interpreted code are recovered and reported as
KindCallFailed.

# Concurrency

The interpreter is not entered concurrently. Invoke acquires a weighted
semaphore honoring its context, so a caller whose deadline passes while
queued gives up without ever reaching the interpreter. A call abandoned
after it started keeps the semaphore until the interpreted function
returns.

Loaded functions are cached per module. With Options.Watch, a change to a
module's .go files evicts it and the next Invoke loads the new source.
*/
package embedded
