package contracts

import (
	"errors"
	"fmt"
)

// Row-level parse outcomes. A skipped row never aborts its batch.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrMalformed     = errors.New("malformed row")
	ErrParseFailure  = errors.New("parse failure")
)

// ErrUpstreamUnavailable marks a missing breadth snapshot or an empty quote
// response. Callers short-circuit to an empty result instead of failing.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrJobRunning is returned when the same job is already in flight
var ErrJobRunning = errors.New("job already running")

// ErrPersistence matches every PersistenceError via errors.Is
var ErrPersistence = errors.New("persistence failure")

// PersistenceError wraps a store failure with the operation that raised it
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// WrapPersistence wraps err, leaving nil untouched
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
