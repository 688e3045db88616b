package appointments

import (
	"errors"
	"fmt"
)

// Error classes. Callers test with errors.Is against these four; the
// specific errors below wrap one of them.
var (
	ErrNotFound       = errors.New("appointments: not found")
	ErrInvalidRequest = errors.New("appointments: invalid request")
	ErrUnavailable    = errors.New("appointments: resource unavailable")
	ErrDependency     = errors.New("appointments: dependency failure")
)

var (
	ErrInvalidStatus           = fmt.Errorf("%w: unknown status", ErrInvalidRequest)
	ErrInvalidTransition       = fmt.Errorf("%w: transition not allowed", ErrInvalidRequest)
	ErrInvalidSearch           = fmt.Errorf("%w: invalid search criteria", ErrInvalidRequest)
	ErrNoProfessionalAvailable = fmt.Errorf("%w: no professional available", ErrUnavailable)
	ErrSlotTaken               = fmt.Errorf("%w: slot already booked", ErrUnavailable)
	ErrConflict                = fmt.Errorf("%w: appointment changed concurrently", ErrUnavailable)
)
