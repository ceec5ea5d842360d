package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
)

// requireUser rejects absent identities. Every operation takes the
// caller identity as an explicit argument; a nil user is always an
// Unauthorized failure, never an empty set of roles.
func requireUser(user *types.User) error {
	if user == nil {
		return fmt.Errorf("%w: not authenticated", ErrUnauthorized)
	}
	return nil
}

// checkPermission is the authoritative gate for "can this user perform
// this action on this bill". It loads the bill (NotFound when absent),
// then requires an access row for (bill, user) whose role is in the
// allowed set (Forbidden otherwise). The loaded bill is returned so
// callers avoid a second fetch.
//
// st must be the same transaction-bound store as the guarded mutation;
// the access read and the mutation share one snapshot, so a concurrent
// revocation aborts rather than racing.
func checkPermission(ctx context.Context, st Store, billID int64, user *types.User, allowed []types.AccessRole) (types.Bill, error) {
	if err := requireUser(user); err != nil {
		return types.Bill{}, err
	}

	bill, err := st.Bills().Get(ctx, billID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Bill{}, fmt.Errorf("%w: bill", ErrNotFound)
		}
		return types.Bill{}, err
	}

	access, err := st.Bills().FindAccess(ctx, billID, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Bill{}, fmt.Errorf("%w: no permission for this bill", ErrForbidden)
		}
		return types.Bill{}, err
	}
	if !slices.Contains(allowed, access.Role) {
		return types.Bill{}, fmt.Errorf("%w: no permission for this bill", ErrForbidden)
	}
	return bill, nil
}
