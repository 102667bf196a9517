package embedded

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a predictor runtime failure
type ErrorKind string

const (
	KindNotInitialized     ErrorKind = "not_initialized"
	KindModuleNotFound     ErrorKind = "module_not_found"
	KindFunctionNotFound   ErrorKind = "function_not_found"
	KindArgumentConversion ErrorKind = "argument_conversion"
	KindCallFailed         ErrorKind = "call_failed"
	KindBadResult          ErrorKind = "bad_result"
)

var (
	ErrNotInitialized     = errors.New("predictor runtime not initialized")
	ErrModuleNotFound     = errors.New("failed to load predictor module")
	ErrFunctionNotFound   = errors.New("cannot find predictor function")
	ErrArgumentConversion = errors.New("cannot convert predictor argument")
	ErrCallFailed         = errors.New("predictor call failed")
	ErrBadResult          = errors.New("predictor returned an unusable result")
)

var sentinels = map[ErrorKind]error{
	KindNotInitialized:     ErrNotInitialized,
	KindModuleNotFound:     ErrModuleNotFound,
	KindFunctionNotFound:   ErrFunctionNotFound,
	KindArgumentConversion: ErrArgumentConversion,
	KindCallFailed:         ErrCallFailed,
	KindBadResult:          ErrBadResult,
}

// RuntimeError describes a failed Invoke
type RuntimeError struct {
	Kind     ErrorKind
	Module   string
	Function string
	Err      error
}

func newError(kind ErrorKind, module, function string, err error) *RuntimeError {
	return &RuntimeError{Kind: kind, Module: module, Function: function, Err: err}
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s (module=%s function=%s)", sentinels[e.Kind], e.Module, e.Function)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind
func (e *RuntimeError) Is(target error) bool {
	return target != nil && sentinels[e.Kind] == target
}

// KindOf returns the kind of a runtime error, or "" for other errors
func KindOf(err error) ErrorKind {
	var rerr *RuntimeError
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ""
}
