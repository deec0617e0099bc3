package order

import "errors"

var (
	// -- Validation outcomes: returned directly, retrying cannot help --
	ErrInvalidTransition = errors.New("action not allowed from current status for this role")
	ErrAlreadyTerminal   = errors.New("order already delivered or cancelled")
	ErrProofRequired     = errors.New("delivery proof required to complete delivery")

	// -- Authorization outcome: mapped to forbidden by transports --
	ErrForbidden = errors.New("actor is not a party to this order")

	// -- Infrastructure outcomes: callers may retry with fresh state --
	ErrConcurrentModification = errors.New("order was modified concurrently")
	ErrOrderNotFound          = errors.New("order not found")
)

// IsValidationError distinguishes user-correctable rejections from
// infrastructure failures so transports can map them differently.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrProofRequired)
}
