package resilience

import (
	"errors"

	"github.com/LavishGent/pageturn/internal/types"
)

var (
	ErrCircuitOpen = types.ErrCircuitOpen
	ErrGateFull    = types.ErrGateFull
)

// IsCircuitOpen returns true if the error is a circuit open error.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, types.ErrCircuitOpen)
}

// IsAdmissionError returns true if the guard refused to start a job. Such
// refusals defer the job without charging it an attempt.
func IsAdmissionError(err error) bool {
	return errors.Is(err, types.ErrGateFull) || errors.Is(err, types.ErrCircuitOpen)
}
