package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
)

const (
	maxMemberNameLen = 64
	maxBatchDelete   = 128
	maxAccessList    = 128
)

// BillRepository defines persistence operations for bills, their member
// rosters, and their access rows. Roster and access rows live with the
// bill repository because every roster mutation goes through the bill
// aggregate; nothing else writes members directly.
type BillRepository interface {
	Create(ctx context.Context, bill types.Bill) (types.Bill, error)
	Get(ctx context.Context, id int64) (types.Bill, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	TouchItemUpdated(ctx context.Context, id int64, at time.Time) error
	ListForUser(ctx context.Context, userID int64, skip, limit int) ([]types.Bill, error)
	DeleteByIDs(ctx context.Context, ids []int64) error

	Members(ctx context.Context, billID int64) ([]types.Member, error)
	GetMember(ctx context.Context, memberID int64) (types.Member, error)
	AddMember(ctx context.Context, member types.Member) (types.Member, error)
	RenameMember(ctx context.Context, memberID int64, name string) error
	BindMember(ctx context.Context, memberID int64, userID *int64) error
	DeleteMember(ctx context.Context, memberID int64) error
	DeleteMembersByBills(ctx context.Context, ids []int64) error

	FindAccess(ctx context.Context, billID, userID int64) (types.Access, error)
	InsertAccess(ctx context.Context, access types.Access) (types.Access, error)
	ListAccess(ctx context.Context, billID int64) ([]types.AccessEntry, error)
	ListAccessByRole(ctx context.Context, billIDs []int64, role types.AccessRole) ([]types.Access, error)
	DeleteAccessByBills(ctx context.Context, ids []int64) error
}

// BillService owns the bill lifecycle and roster mutations. The bill
// record and its dependents always change inside one transaction.
type BillService struct {
	store  Store
	events EventPublisher
	now    func() time.Time
}

func NewBillService(store Store, events EventPublisher) *BillService {
	if events == nil {
		events = NopPublisher{}
	}
	return &BillService{store: store, events: events, now: time.Now}
}

// Create inserts a bill with an empty roster and exactly one Owner
// access row for the creator, atomically.
func (s *BillService) Create(ctx context.Context, user *types.User, title string) (types.Bill, error) {
	if err := requireUser(user); err != nil {
		return types.Bill{}, err
	}
	if strings.TrimSpace(title) == "" {
		return types.Bill{}, fmt.Errorf("%w: title is required", ErrBadRequest)
	}

	now := s.now()
	var bill types.Bill
	err := s.store.RunInTx(ctx, func(st Store) error {
		var err error
		bill, err = st.Bills().Create(ctx, types.Bill{
			Title:           title,
			CreatedBy:       user.ID,
			CreatedTime:     now,
			ItemUpdatedTime: now,
		})
		if err != nil {
			return err
		}
		_, err = st.Bills().InsertAccess(ctx, types.Access{
			BillID: bill.ID,
			UserID: user.ID,
			Role:   types.RoleOwner,
		})
		return err
	})
	if err != nil {
		return types.Bill{}, err
	}
	bill.Members = []types.Member{}

	s.events.Publish(ctx, types.BillEvent{
		Kind:       types.EventBillCreated,
		BillID:     bill.ID,
		ActorID:    user.ID,
		OccurredAt: now,
	})
	return bill, nil
}

// Update replaces the bill title. Owner only; the roster is mutated
// exclusively through the member operations.
func (s *BillService) Update(ctx context.Context, user *types.User, billID int64, title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOnly); err != nil {
			return err
		}
		return st.Bills().UpdateTitle(ctx, billID, title)
	})
	if err != nil {
		return err
	}
	s.events.Publish(ctx, types.BillEvent{
		Kind:       types.EventBillUpdated,
		BillID:     billID,
		ActorID:    user.ID,
		OccurredAt: s.now(),
	})
	return nil
}

// Get returns the full bill aggregate, roster included. Any role.
func (s *BillService) Get(ctx context.Context, user *types.User, billID int64) (types.Bill, error) {
	var bill types.Bill
	err := s.store.RunInTx(ctx, func(st Store) error {
		var err error
		bill, err = checkPermission(ctx, st, billID, user, types.AnyRole)
		if err != nil {
			return err
		}
		bill.Members, err = st.Bills().Members(ctx, billID)
		return err
	})
	return bill, err
}

// ListForUser returns bills the user holds any access to, most recent
// item activity first.
func (s *BillService) ListForUser(ctx context.Context, user *types.User, skip, limit int) ([]types.Bill, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	skip, limit, err := checkPage(skip, limit)
	if err != nil {
		return nil, err
	}

	bills, err := s.store.Bills().ListForUser(ctx, user.ID, skip, limit)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Members, err = s.store.Bills().Members(ctx, bills[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return bills, nil
}

// DeleteMany deletes a batch of bills with everything hanging off them:
// access rows, members, items, and share tokens. The caller must hold
// Owner on every bill in the batch; one miss fails the whole batch
// before anything is deleted. Check and deletes share one transaction,
// so a concurrent revocation aborts the batch rather than racing it.
func (s *BillService) DeleteMany(ctx context.Context, user *types.User, billIDs []int64) error {
	if err := requireUser(user); err != nil {
		return err
	}
	if len(billIDs) == 0 {
		return nil
	}
	if len(billIDs) > maxBatchDelete {
		return fmt.Errorf("%w: at most %d bills per delete", ErrBadRequest, maxBatchDelete)
	}

	err := s.store.RunInTx(ctx, func(st Store) error {
		owners, err := st.Bills().ListAccessByRole(ctx, billIDs, types.RoleOwner)
		if err != nil {
			return err
		}
		owned := make(map[int64]bool, len(owners))
		for _, access := range owners {
			if access.UserID != user.ID {
				return fmt.Errorf("%w: not an owner of every bill", ErrForbidden)
			}
			owned[access.BillID] = true
		}
		for _, id := range billIDs {
			if !owned[id] {
				return fmt.Errorf("%w: not an owner of every bill", ErrForbidden)
			}
		}

		if err := st.Shares().DeleteByBills(ctx, billIDs); err != nil {
			return err
		}
		if err := st.Items().DeleteByBills(ctx, billIDs); err != nil {
			return err
		}
		if err := st.Bills().DeleteAccessByBills(ctx, billIDs); err != nil {
			return err
		}
		if err := st.Bills().DeleteMembersByBills(ctx, billIDs); err != nil {
			return err
		}
		return st.Bills().DeleteByIDs(ctx, billIDs)
	})
	if err != nil {
		return err
	}

	now := s.now()
	for _, id := range billIDs {
		s.events.Publish(ctx, types.BillEvent{
			Kind:       types.EventBillDeleted,
			BillID:     id,
			ActorID:    user.ID,
			OccurredAt: now,
		})
	}
	return nil
}

// AddMember appends a member to the bill's roster. Owner or member.
func (s *BillService) AddMember(ctx context.Context, user *types.User, billID int64, name string, linkedUserID *int64) (types.Member, error) {
	if err := validateMemberName(name); err != nil {
		return types.Member{}, err
	}

	var member types.Member
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		if linkedUserID != nil {
			if _, err := st.Users().GetByID(ctx, *linkedUserID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("%w: linked user", ErrNotFound)
				}
				return err
			}
		}
		var err error
		member, err = st.Bills().AddMember(ctx, types.Member{
			BillID:       billID,
			Name:         name,
			LinkedUserID: linkedUserID,
		})
		return err
	})
	return member, err
}

// RemoveMember deletes a member and its roster reference atomically.
// A member that exists but belongs to another bill is a BadRequest, not
// a NotFound; a member still named as payer by any item cannot be
// removed.
func (s *BillService) RemoveMember(ctx context.Context, user *types.User, billID, memberID int64) error {
	return s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}

		member, err := st.Bills().GetMember(ctx, memberID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: bill member", ErrNotFound)
			}
			return err
		}
		if member.BillID != billID {
			return fmt.Errorf("%w: member not on this bill", ErrBadRequest)
		}

		referenced, err := st.Items().CountByPayer(ctx, memberID)
		if err != nil {
			return err
		}
		if referenced > 0 {
			return fmt.Errorf("%w: member is payer on %d items", ErrBadRequest, referenced)
		}

		return st.Bills().DeleteMember(ctx, memberID)
	})
}

// BindMember sets or clears the member's linked user. Duplicate links
// are allowed: the same user may be linked from several members.
func (s *BillService) BindMember(ctx context.Context, user *types.User, billID, memberID int64, userID *int64) error {
	return s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		if _, err := s.memberOnBill(ctx, st, billID, memberID); err != nil {
			return err
		}
		if userID != nil {
			if _, err := st.Users().GetByID(ctx, *userID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("%w: user", ErrNotFound)
				}
				return err
			}
		}
		return st.Bills().BindMember(ctx, memberID, userID)
	})
}

// UpdateMember renames a member in place.
func (s *BillService) UpdateMember(ctx context.Context, user *types.User, billID, memberID int64, name string) error {
	if err := validateMemberName(name); err != nil {
		return err
	}
	return s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		if _, err := s.memberOnBill(ctx, st, billID, memberID); err != nil {
			return err
		}
		return st.Bills().RenameMember(ctx, memberID, name)
	})
}

// UpdateAccess replaces the entire access roster of the bill with the
// supplied list inside one transaction. This is a destructive full
// replace, not a merge: a list without an Owner row leaves the bill
// ownerless, including for the caller.
func (s *BillService) UpdateAccess(ctx context.Context, user *types.User, billID int64, grants []types.AccessGrant) error {
	if len(grants) > maxAccessList {
		return fmt.Errorf("%w: at most %d access entries", ErrBadRequest, maxAccessList)
	}
	seen := make(map[int64]bool, len(grants))
	for _, grant := range grants {
		if !grant.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q", ErrBadRequest, grant.Role)
		}
		if seen[grant.UserID] {
			return fmt.Errorf("%w: duplicate user in access list", ErrBadRequest)
		}
		seen[grant.UserID] = true
	}

	return s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOnly); err != nil {
			return err
		}
		for _, grant := range grants {
			if _, err := st.Users().GetByID(ctx, grant.UserID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("%w: user %d", ErrNotFound, grant.UserID)
				}
				return err
			}
		}
		if err := st.Bills().DeleteAccessByBills(ctx, []int64{billID}); err != nil {
			return err
		}
		for _, grant := range grants {
			_, err := st.Bills().InsertAccess(ctx, types.Access{
				BillID: billID,
				UserID: grant.UserID,
				Role:   grant.Role,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAccess returns the bill's access rows with usernames resolved.
// Any role.
func (s *BillService) ListAccess(ctx context.Context, user *types.User, billID int64) ([]types.AccessEntry, error) {
	var entries []types.AccessEntry
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.AnyRole); err != nil {
			return err
		}
		var err error
		entries, err = st.Bills().ListAccess(ctx, billID)
		return err
	})
	return entries, err
}

func (s *BillService) memberOnBill(ctx context.Context, st Store, billID, memberID int64) (types.Member, error) {
	member, err := st.Bills().GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Member{}, fmt.Errorf("%w: bill member", ErrNotFound)
		}
		return types.Member{}, err
	}
	if member.BillID != billID {
		return types.Member{}, fmt.Errorf("%w: bill member", ErrNotFound)
	}
	return member, nil
}

func validateMemberName(name string) error {
	if name == "" || len(name) > maxMemberNameLen {
		return fmt.Errorf("%w: member name must be 1-64 characters", ErrBadRequest)
	}
	return nil
}
