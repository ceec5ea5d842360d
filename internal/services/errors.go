package services

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by every service operation. Handlers map these
// onto HTTP statuses; the services themselves never see the wire.
var (
	// ErrUnauthorized means no identity was presented or it did not resolve.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the identity is valid but its role is insufficient.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means a bill, member, item, or token is absent or not
	// inside the claimed parent.
	ErrNotFound = errors.New("not found")

	// ErrBadRequest covers validation failures: expired or exhausted
	// tokens, a payer that is not a member, malformed roster edits,
	// duplicate unique fields, out-of-range pagination.
	ErrBadRequest = errors.New("bad request")

	// ErrConflict is a transient write conflict that survived the retry
	// budget. Never returned for validation or permission failures.
	ErrConflict = errors.New("conflict")
)

// DuplicateError reports a unique-constraint violation and names the
// colliding field. It is a BadRequest for taxonomy purposes.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrBadRequest
}
