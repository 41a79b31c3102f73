package lending

import "errors"

// Error classes surfaced to callers. Operations wrap these with detail using
// fmt.Errorf("%w: ...") so errors.Is keeps working across the service layer.
var (
	ErrAuthorization = errors.New("lending: unauthorized")
	ErrPoolState     = errors.New("lending: pool state does not allow operation")
	ErrTiming        = errors.New("lending: operation not allowed at this time")
	ErrCapacity      = errors.New("lending: capacity exceeded")
	ErrAmount        = errors.New("lending: amount exceeds position")
	ErrConsistency   = errors.New("lending: position conflict")
	ErrConfiguration = errors.New("lending: invalid pool configuration")
	ErrPoolNotFound  = errors.New("lending: pool not found")
	ErrInvalidAmount = errors.New("lending: amount must be positive")
	ErrReentrant     = errors.New("lending: pool operation already in flight")

	// ErrNotInitialised is returned until InitRegistry has recorded an owner.
	ErrNotInitialised     = errors.New("lending: registry not initialised")
	ErrAlreadyInitialised = errors.New("lending: registry already initialised")

	errNilState        = errors.New("lending engine: state not configured")
	errNilCollaborator = errors.New("lending engine: asset ledger or vault factory not configured")
)
