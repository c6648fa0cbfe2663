package exception

import "errors"

// Ledger store errors
var (
	ErrNotFound            = errors.New("ledger: not found")
	ErrConflict            = errors.New("ledger: compare-and-set target moved")
	ErrDuplicateExecution  = errors.New("ledger: duplicate execution id")
	ErrDuplicatePrediction = errors.New("ledger: duplicate prediction for symbol and trading date")
	ErrDuplicateOrder      = errors.New("ledger: duplicate order id")
)

// Order state machine errors
var (
	ErrOverfill          = errors.New("order: fill exceeds requested quantity")
	ErrInvalidTransition = errors.New("order: invalid state transition")
	ErrSequenceViolation = errors.New("order: execution sequence not strictly increasing")
)

// Prediction settlement errors
var (
	ErrAlreadySettled = errors.New("prediction: already settled with a different observation")
)

// Retryable reports whether the same event may be applied again unchanged.
// Only optimistic concurrency failures qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Rejection reports whether err rejects the event itself. Rejected events
// must not be retried with the same payload.
func Rejection(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrOverfill),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrSequenceViolation),
		errors.Is(err, ErrAlreadySettled),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrDuplicateExecution),
		errors.Is(err, ErrDuplicatePrediction),
		errors.Is(err, ErrDuplicateOrder):
		return true
	default:
		return false
	}
}
