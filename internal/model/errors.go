package model

import (
	"errors"
)

var (
	// ErrClassificationMiss marks an output line no matcher recognized. Never fatal.
	ErrClassificationMiss = errors.New("classification miss")
	// ErrTaskFailure is reported when mwc713 answered a command with a failure.
	ErrTaskFailure = errors.New("task failed")
	// ErrTaskTimeout is reported when no terminal output arrived before the deadline.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrProcessUnavailable is reported when the wallet process is not running.
	ErrProcessUnavailable = errors.New("wallet process unavailable")
	ErrTaskCancelled      = errors.New("task cancelled")

	ErrInvalidTransition = errors.New("invalid state transition")
	ErrWrongState        = errors.New("action not available in current state")
)
