package chat

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrStopped is returned by Engine methods once the engine was closed.
var ErrStopped = errors.New("chat engine stopped")

// ErrBusy is returned by Engine methods when the command queue is full. The
// engine is still running and relay events keep being applied; the caller may
// retry.
var ErrBusy = errors.New("chat engine busy")

// ValidationError is a command rejected locally. Nothing was sent to the
// relay.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
