package services

import "context"

// Store aggregates the repositories behind one persistence handle. The
// handle is either the shared pool or a single open transaction; RunInTx
// hands the callback a transaction-bound Store so permission checks and
// the mutations they guard share one snapshot. Calling RunInTx on an
// already transaction-bound Store joins the open transaction.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	Bills() BillRepository
	Items() ItemRepository
	Shares() ShareRepository

	// RunInTx executes fn atomically, retrying a bounded number of
	// times on transient write conflicts. Errors from fn abort the
	// transaction and are returned verbatim; only conflict errors
	// reported by the backend trigger a retry.
	RunInTx(ctx context.Context, fn func(Store) error) error
}

// Pagination bounds shared by every listing operation.
const (
	MaxListLimit     = 128
	DefaultListLimit = 16
)

// checkPage validates skip/limit before any query runs. A zero limit
// falls back to the default.
func checkPage(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, &pageError{"skip must be >= 0"}
	}
	if limit < 0 || limit > MaxListLimit {
		return 0, 0, &pageError{"limit must be between 0 and 128"}
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	return skip, limit, nil
}

type pageError struct{ msg string }

func (e *pageError) Error() string        { return e.msg }
func (e *pageError) Is(target error) bool { return target == ErrBadRequest }
