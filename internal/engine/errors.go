package engine

import "errors"

// Errors returned by the engine and its stores.  Callers are expected to
// test with errors.Is; every error may carry wrapped context.
var (
	// ErrNotFound indicates an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidTransition indicates the trigger is not valid from the
	// session's current state.  The session is left unchanged and the
	// caller may retry with a correct trigger.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden indicates the acting role is not allowed to perform
	// the trigger.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a concurrent transition committed first.
	// Callers should re-fetch the session and decide whether to retry.
	ErrConflict = errors.New("concurrent transition conflict")

	// ErrSessionClosed indicates the session passed its resumability
	// window and is permanently closed.
	ErrSessionClosed = errors.New("session closed")
)
