package shop

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Adapters and the auth collaborator wrap their backend
// errors with exactly one of these sentinels so the caller can render one
// distinct message per class.
var (
	// ErrNoActiveSession is returned when a mutation is attempted without a bound user.
	ErrNoActiveSession = errors.New("shop: no active session")
	// ErrSchemaMissing indicates the backing table or collection is not provisioned.
	ErrSchemaMissing = errors.New("shop: backing schema missing")
	// ErrPermissionDenied indicates the backing store rejected the operation.
	ErrPermissionDenied = errors.New("shop: permission denied by store")
	// ErrRateLimited indicates the auth provider throttled the request.
	ErrRateLimited = errors.New("shop: rate limited")
	// ErrDuplicateIdentity indicates a sign-up collided with an existing account.
	ErrDuplicateIdentity = errors.New("shop: identity already registered")
	// ErrInvalidCredentials indicates a sign-in with an unknown or mismatched credential.
	ErrInvalidCredentials = errors.New("shop: invalid credentials")
	// ErrConversionPartial indicates the converted order was persisted but the
	// source budget is still marked waiting.
	ErrConversionPartial = errors.New("shop: order created but budget status update failed")
	// ErrArchiveNotDelivered indicates archiving was refused by the delivered-only policy.
	ErrArchiveNotDelivered = errors.New("shop: only delivered orders may be archived")
	// ErrEntityNotFound indicates the referenced entity is not in the session store.
	ErrEntityNotFound = errors.New("shop: entity not found")
)

// ServiceError attaches a dot-separated operation code to an underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable operation code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ErrorCode extracts the ServiceError code from err, or "" when absent.
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

// UserMessage maps any core failure to the single user-facing message of its
// class. Unrecognized failures surface their own text verbatim.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoActiveSession):
		return "Sign in to make changes."
	case errors.Is(err, ErrSchemaMissing):
		return "Storage is not provisioned yet. Create the backing tables and try again."
	case errors.Is(err, ErrPermissionDenied):
		return "The storage backend rejected this action."
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts. Wait a moment and try again."
	case errors.Is(err, ErrDuplicateIdentity):
		return "An account with this email already exists."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email or password is incorrect."
	case errors.Is(err, ErrConversionPartial):
		return "The order was created, but the budget could not be marked approved."
	case errors.Is(err, ErrArchiveNotDelivered):
		return "Only delivered orders can be archived."
	case errors.Is(err, ErrEntityNotFound):
		return "The record no longer exists."
	default:
		return err.Error()
	}
}
