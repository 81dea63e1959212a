package types

import "errors"

// Error kinds shared by every module. Call sites wrap them with a message that
// names the failed precondition; the transport layer matches with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrInvalidState        = errors.New("invalid state")
	ErrValidation          = errors.New("validation error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrConflict is returned by stores when a compare-and-set loses a race.
	ErrConflict = errors.New("concurrent modification")
)
