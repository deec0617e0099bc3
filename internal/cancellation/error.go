package cancellation

import "errors"

var (
	// -- Policy outcomes --
	ErrNotEligible    = errors.New("order is not eligible for cancellation")
	ErrInvalidReason  = errors.New("reason category is not valid for this role")
	ErrReasonRequired = errors.New("admin override requires a reason detail")
	ErrInvalidRate    = errors.New("admin override requires a refund rate between 0 and 1")

	// -- External systems --
	ErrRefundGateway = errors.New("refund gateway reported failure")

	ErrRecordNotFound = errors.New("cancellation record not found")
)

func IsValidationError(err error) bool {
	return errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrInvalidReason) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrInvalidRate)
}
