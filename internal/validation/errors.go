package validation

import "errors"

var (
	// ErrSubmissionRejected indicates the execution service refused a backtest
	// request. The run fails and the session moves on to the next cycle.
	ErrSubmissionRejected = errors.New("backtest submission rejected")

	// ErrSessionNotFound indicates no session exists for the given id
	ErrSessionNotFound = errors.New("validation session not found")

	// ErrInvalidTransition indicates a control action not allowed in the current state
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrInvalidConfig indicates a session configuration that cannot run
	ErrInvalidConfig = errors.New("invalid session configuration")
)
