package billing

import "errors"

// Error taxonomy for the subscription core. Callers map these onto transport
// status codes; provider-internal error details are logged, never echoed.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrPlanInvalid      = errors.New("invalid plan")
	ErrValidation       = errors.New("invalid request")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrProvider         = errors.New("payment provider error")
	ErrProviderTimeout  = errors.New("payment provider timeout")
)
