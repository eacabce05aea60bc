package domain

import "errors"

var (
	// ErrInvalidPercentage is returned for a settlement percentage outside [0, 100].
	ErrInvalidPercentage = errors.New("settlement: invalid percentage")
	// ErrMissingJustification is returned when an out-of-policy offer has no justification notes.
	ErrMissingJustification = errors.New("settlement: justification required outside policy band")
	// ErrMissingComment is returned when a supervisor rejects without a comment.
	ErrMissingComment = errors.New("settlement: supervisor comment required")
	// ErrDueDateTooFar is returned when an offer's due date exceeds the policy horizon.
	ErrDueDateTooFar = errors.New("settlement: due date beyond policy horizon")
	// ErrInvalidTransition is returned when an action is not allowed in the offer's current status.
	ErrInvalidTransition = errors.New("settlement: invalid transition")
	// ErrNotFound is returned when an offer or loan does not exist.
	ErrNotFound = errors.New("settlement: not found")
	// ErrBusy is returned when the per-offer lock cannot be acquired in time.
	ErrBusy = errors.New("settlement: offer busy")
	// ErrStorageUnavailable wraps backend failures. It is never retried by the engine.
	ErrStorageUnavailable = errors.New("settlement: storage unavailable")
	// ErrForbidden is returned when the actor's role may not perform the action.
	ErrForbidden = errors.New("settlement: actor not permitted")
	// ErrInvalidRequest is returned for malformed input (missing ids, dates or response type).
	ErrInvalidRequest = errors.New("settlement: invalid request")
)
