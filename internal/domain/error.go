package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Generation pipeline outcomes
	ErrUsageDenied      = errors.New("usage limit reached")
	ErrPolicyBlocked    = errors.New("suggestion blocked by content policy")
	ErrGenerationFailed = errors.New("suggestion generation produced no usable text")

	// Delivery
	ErrAlreadyDelivered = errors.New("job already delivered")
	ErrNoCredential     = errors.New("no delivery credential for tenant")
)

// IsTerminal reports whether err is a business outcome that must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUsageDenied) ||
		errors.Is(err, ErrPolicyBlocked) ||
		errors.Is(err, ErrGenerationFailed) ||
		errors.Is(err, ErrInvalidArgument)
}
