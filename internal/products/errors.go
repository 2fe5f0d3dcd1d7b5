package products

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced product does not exist.
	ErrNotFound = errors.New("products: product not found")
	// ErrNotOwner indicates the requester is neither submitter nor verified
	// owner. Surfaced to users as a "different account" message.
	ErrNotOwner = errors.New("products: product belongs to a different account")
	// ErrPolicyDenied indicates a mutation matched the authorization
	// predicate yet affected zero rows: the backing access rules are
	// misconfigured. The message is surfaced verbatim to aid debugging.
	ErrPolicyDenied = errors.New("products: update blocked by access policy despite matching identity; check the row security rules on the products table")
	// ErrAlreadyOwned indicates a claim was requested on an owned product.
	ErrAlreadyOwned = errors.New("products: product already has an owner")
	// ErrNoPendingClaim indicates a claim transition without a pending claim.
	ErrNoPendingClaim = errors.New("products: no pending claim for product")
	// ErrNotModerator indicates the requester lacks the moderator capability.
	ErrNotModerator = errors.New("products: moderator capability required")
)

// ServiceError wraps failures with a dotted operation code.
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

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
