package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/google/uuid"
)

// ShareRepository defines persistence operations for share tokens.
type ShareRepository interface {
	Insert(ctx context.Context, token types.ShareToken) (types.ShareToken, error)
	GetByToken(ctx context.Context, token string) (types.ShareToken, error)
	GetByTokenAndBill(ctx context.Context, token string, billID int64) (types.ShareToken, error)
	List(ctx context.Context, billID int64) ([]types.ShareTokenView, error)
	SetRemainingUses(ctx context.Context, id int64, uses int) error
	Delete(ctx context.Context, id int64) error
	DeleteByBills(ctx context.Context, ids []int64) error
}

// ShareService implements the share-token capability protocol: owners
// issue, list, and revoke tokens; anyone with a token can redeem it for
// first-time access under the token's constraints.
type ShareService struct {
	store  Store
	events EventPublisher
	now    func() time.Time
}

func NewShareService(store Store, events EventPublisher) *ShareService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ShareService{store: store, events: events, now: time.Now}
}

// Issue creates a share token granting the given role, optionally
// bounded by expiry and a use budget, optionally bound to a bill member
// that redemption will link to the redeeming user. Owner only.
func (s *ShareService) Issue(ctx context.Context, user *types.User, billID int64, role types.AccessRole, expiresAt *time.Time, remainingUses *int, memberID *int64) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrBadRequest, role)
	}
	if remainingUses != nil && *remainingUses < 1 {
		return "", fmt.Errorf("%w: remaining_uses must be at least 1", ErrBadRequest)
	}

	token := uuid.NewString()
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOnly); err != nil {
			return err
		}
		if memberID != nil {
			member, err := st.Bills().GetMember(ctx, *memberID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("%w: bill member", ErrNotFound)
				}
				return err
			}
			if member.BillID != billID {
				return fmt.Errorf("%w: bill member", ErrNotFound)
			}
		}

		_, err := st.Shares().Insert(ctx, types.ShareToken{
			Token:         token,
			BillID:        billID,
			Role:          role,
			CreatedBy:     user.ID,
			CreatedTime:   s.now(),
			ExpiresAt:     expiresAt,
			RemainingUses: remainingUses,
			MemberID:      memberID,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Redeem grants the presented token's role to the redeeming user.
// Expired or exhausted tokens and users that already hold any access on
// the bill fail BadRequest; the token row survives exhaustion so owners
// can still list it. A member-bound token links that member to the
// redeemer. Returns the bill id the access was granted on.
func (s *ShareService) Redeem(ctx context.Context, user *types.User, token string) (int64, error) {
	if err := requireUser(user); err != nil {
		return 0, err
	}
	if token == "" {
		return 0, fmt.Errorf("%w: token is required", ErrBadRequest)
	}

	var billID int64
	err := s.store.RunInTx(ctx, func(st Store) error {
		share, err := st.Shares().GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: share token", ErrNotFound)
			}
			return err
		}

		now := s.now()
		if share.ExpiresAt != nil && share.ExpiresAt.Before(now) {
			return fmt.Errorf("%w: share token has expired", ErrBadRequest)
		}
		if share.RemainingUses != nil && *share.RemainingUses <= 0 {
			return fmt.Errorf("%w: share token has no remaining uses", ErrBadRequest)
		}

		// Redemption is strictly for first-time access; tokens never
		// upgrade or downgrade an existing role.
		_, err = st.Bills().FindAccess(ctx, share.BillID, user.ID)
		if err == nil {
			return fmt.Errorf("%w: you already have access to this bill", ErrBadRequest)
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		if _, err := st.Bills().InsertAccess(ctx, types.Access{
			BillID: share.BillID,
			UserID: user.ID,
			Role:   share.Role,
		}); err != nil {
			return err
		}

		if share.MemberID != nil {
			if err := st.Bills().BindMember(ctx, *share.MemberID, &user.ID); err != nil {
				return err
			}
		}

		if share.RemainingUses != nil {
			if err := st.Shares().SetRemainingUses(ctx, share.ID, *share.RemainingUses-1); err != nil {
				return err
			}
		}

		billID = share.BillID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.events.Publish(ctx, types.BillEvent{
		Kind:       types.EventBillRedeemed,
		BillID:     billID,
		ActorID:    user.ID,
		OccurredAt: s.now(),
	})
	return billID, nil
}

// List returns all tokens for a bill with issuer username and bound
// member name resolved. Owner only.
func (s *ShareService) List(ctx context.Context, user *types.User, billID int64) ([]types.ShareTokenView, error) {
	var views []types.ShareTokenView
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOnly); err != nil {
			return err
		}
		var err error
		views, err = st.Shares().List(ctx, billID)
		return err
	})
	return views, err
}

// Revoke deletes one token. NotFound unless the token string matches
// the bill. Owner only.
func (s *ShareService) Revoke(ctx context.Context, user *types.User, billID int64, token string) error {
	return s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOnly); err != nil {
			return err
		}
		share, err := st.Shares().GetByTokenAndBill(ctx, token, billID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: share token", ErrNotFound)
			}
			return err
		}
		return st.Shares().Delete(ctx, share.ID)
	})
}

// RevokeAll deletes every token for the bill. Owner only.
func (s *ShareService) RevokeAll(ctx context.Context, user *types.User, billID int64) error {
	return s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOnly); err != nil {
			return err
		}
		return st.Shares().DeleteByBills(ctx, []int64{billID})
	})
}
