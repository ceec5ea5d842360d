package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
)

const (
	maxItemTypeLen        = 64
	maxItemDescriptionLen = 256
)

// ItemRepository defines persistence operations for ledger items.
type ItemRepository interface {
	Insert(ctx context.Context, item types.Item) (types.Item, error)
	Get(ctx context.Context, id int64) (types.Item, error)
	Update(ctx context.Context, item types.Item) error
	Delete(ctx context.Context, id int64) error
	ListByBill(ctx context.Context, billID int64, skip, limit int) ([]types.Item, error)
	CountByPayer(ctx context.Context, memberID int64) (int, error)
	DeleteByBills(ctx context.Context, ids []int64) error
	SetReceiptKey(ctx context.Context, id int64, key *string) error
}

// ReceiptStorage is the object-storage surface used for receipt
// attachments. Satisfied by the storage package wrapper.
type ReceiptStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ItemService owns the expense-item lifecycle within a bill. Every
// mutation validates the payer against the bill's current roster and
// bumps the bill's item-activity timestamp in the same transaction.
type ItemService struct {
	store    Store
	receipts ReceiptStorage
	events   EventPublisher
	now      func() time.Time
}

// NewItemService constructs an ItemService. receipts may be nil when no
// object storage is configured; receipt operations then fail BadRequest.
func NewItemService(store Store, receipts ReceiptStorage, events EventPublisher) *ItemService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ItemService{store: store, receipts: receipts, events: events, now: time.Now}
}

// Create records an expense item. Owner or member; the payer must be on
// the bill's roster. Creation time is stamped server-side; occurred
// time is taken from the caller.
func (s *ItemService) Create(ctx context.Context, user *types.User, billID int64, item types.Item) (types.Item, error) {
	if err := validateItem(item); err != nil {
		return types.Item{}, err
	}

	now := s.now()
	var created types.Item
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		if err := payerOnRoster(ctx, st, billID, item.PaidBy); err != nil {
			return err
		}

		item.BillID = billID
		item.CreatedBy = user.ID
		item.CreatedTime = now
		item.ReceiptKey = nil

		var err error
		created, err = st.Items().Insert(ctx, item)
		if err != nil {
			return err
		}
		return st.Bills().TouchItemUpdated(ctx, billID, now)
	})
	if err != nil {
		return types.Item{}, err
	}

	s.events.Publish(ctx, types.BillEvent{
		Kind:       types.EventItemCreated,
		BillID:     billID,
		ItemID:     created.ID,
		ActorID:    user.ID,
		OccurredAt: now,
	})
	return created, nil
}

// Update applies a partial field update. Creator, payer, and creation
// time are immutable; the existing payer is still re-validated against
// the current roster, which may have changed since creation.
func (s *ItemService) Update(ctx context.Context, user *types.User, billID, itemID int64, fields types.ItemUpdate) (types.Item, error) {
	now := s.now()
	var updated types.Item
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		item, err := s.itemOnBill(ctx, st, billID, itemID)
		if err != nil {
			return err
		}
		if err := payerOnRoster(ctx, st, billID, item.PaidBy); err != nil {
			return err
		}

		if fields.Type != nil {
			item.Type = *fields.Type
		}
		if fields.TypeIcon != nil {
			item.TypeIcon = *fields.TypeIcon
		}
		if fields.Description != nil {
			item.Description = *fields.Description
		}
		if fields.Amount != nil {
			item.Amount = *fields.Amount
		}
		if fields.Currency != nil {
			item.Currency = *fields.Currency
		}
		if fields.OccurredTime != nil {
			item.OccurredTime = *fields.OccurredTime
		}
		if err := validateItem(item); err != nil {
			return err
		}

		if err := st.Items().Update(ctx, item); err != nil {
			return err
		}
		updated = item
		return st.Bills().TouchItemUpdated(ctx, billID, now)
	})
	if err != nil {
		return types.Item{}, err
	}

	s.events.Publish(ctx, types.BillEvent{
		Kind:       types.EventItemUpdated,
		BillID:     billID,
		ItemID:     itemID,
		ActorID:    user.ID,
		OccurredAt: now,
	})
	return updated, nil
}

// Delete removes an item from a bill. Owner or member; an item that is
// absent or belongs to another bill is NotFound.
func (s *ItemService) Delete(ctx context.Context, user *types.User, billID, itemID int64) error {
	now := s.now()
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		if _, err := s.itemOnBill(ctx, st, billID, itemID); err != nil {
			return err
		}
		if err := st.Items().Delete(ctx, itemID); err != nil {
			return err
		}
		return st.Bills().TouchItemUpdated(ctx, billID, now)
	})
	if err != nil {
		return err
	}

	s.events.Publish(ctx, types.BillEvent{
		Kind:       types.EventItemDeleted,
		BillID:     billID,
		ItemID:     itemID,
		ActorID:    user.ID,
		OccurredAt: now,
	})
	return nil
}

// List returns the bill's items ordered by occurred time descending.
// Any role.
func (s *ItemService) List(ctx context.Context, user *types.User, billID int64, skip, limit int) ([]types.Item, error) {
	skip, limit, err := checkPage(skip, limit)
	if err != nil {
		return nil, err
	}

	var items []types.Item
	err = s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.AnyRole); err != nil {
			return err
		}
		var err error
		items, err = st.Items().ListByBill(ctx, billID, skip, limit)
		return err
	})
	return items, err
}

// AttachReceipt uploads a receipt for an item and records its storage
// key. Owner or member. Re-attaching replaces the previous object.
func (s *ItemService) AttachReceipt(ctx context.Context, user *types.User, billID, itemID int64, r io.Reader, size int64, contentType string) error {
	if s.receipts == nil {
		return fmt.Errorf("%w: receipt storage is not configured", ErrBadRequest)
	}

	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		_, err := s.itemOnBill(ctx, st, billID, itemID)
		return err
	})
	if err != nil {
		return err
	}

	key := receiptKey(billID, itemID)
	if err := s.receipts.Put(ctx, key, r, size, contentType); err != nil {
		return err
	}

	// The upload runs outside any transaction, so the item (or the
	// caller's access) may be gone by the time it finishes. Re-verify
	// before recording the key and remove the orphan object otherwise.
	err = s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		if _, err := s.itemOnBill(ctx, st, billID, itemID); err != nil {
			return err
		}
		return st.Items().SetReceiptKey(ctx, itemID, &key)
	})
	if err != nil {
		_ = s.receipts.Delete(ctx, key)
		return err
	}
	return nil
}

// GetReceipt opens the receipt attached to an item. Any role; NotFound
// when the item has no receipt.
func (s *ItemService) GetReceipt(ctx context.Context, user *types.User, billID, itemID int64) (io.ReadCloser, error) {
	if s.receipts == nil {
		return nil, fmt.Errorf("%w: receipt storage is not configured", ErrBadRequest)
	}

	var item types.Item
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.AnyRole); err != nil {
			return err
		}
		var err error
		item, err = s.itemOnBill(ctx, st, billID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if item.ReceiptKey == nil {
		return nil, fmt.Errorf("%w: receipt", ErrNotFound)
	}
	return s.receipts.Get(ctx, *item.ReceiptKey)
}

// DeleteReceipt removes an item's receipt object and clears its key.
// Owner or member.
func (s *ItemService) DeleteReceipt(ctx context.Context, user *types.User, billID, itemID int64) error {
	if s.receipts == nil {
		return fmt.Errorf("%w: receipt storage is not configured", ErrBadRequest)
	}

	var item types.Item
	err := s.store.RunInTx(ctx, func(st Store) error {
		if _, err := checkPermission(ctx, st, billID, user, types.OwnerOrMember); err != nil {
			return err
		}
		var err error
		item, err = s.itemOnBill(ctx, st, billID, itemID)
		return err
	})
	if err != nil {
		return err
	}
	if item.ReceiptKey == nil {
		return fmt.Errorf("%w: receipt", ErrNotFound)
	}
	if err := s.receipts.Delete(ctx, *item.ReceiptKey); err != nil {
		return err
	}
	return s.store.Items().SetReceiptKey(ctx, itemID, nil)
}

func (s *ItemService) itemOnBill(ctx context.Context, st Store, billID, itemID int64) (types.Item, error) {
	item, err := st.Items().Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Item{}, fmt.Errorf("%w: bill item", ErrNotFound)
		}
		return types.Item{}, err
	}
	if item.BillID != billID {
		return types.Item{}, fmt.Errorf("%w: bill item", ErrNotFound)
	}
	return item, nil
}

// payerOnRoster fails BadRequest unless the member is currently on the
// bill's roster.
func payerOnRoster(ctx context.Context, st Store, billID, memberID int64) error {
	member, err := st.Bills().GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: payer is not a member of this bill", ErrBadRequest)
		}
		return err
	}
	if member.BillID != billID {
		return fmt.Errorf("%w: payer is not a member of this bill", ErrBadRequest)
	}
	return nil
}

func validateItem(item types.Item) error {
	if item.Type == "" || len(item.Type) > maxItemTypeLen {
		return fmt.Errorf("%w: type must be 1-%d characters", ErrBadRequest, maxItemTypeLen)
	}
	if len(item.Description) > maxItemDescriptionLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrBadRequest, maxItemDescriptionLen)
	}
	if item.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrBadRequest)
	}
	if item.OccurredTime.IsZero() {
		return fmt.Errorf("%w: occurred_time is required", ErrBadRequest)
	}
	return nil
}

func receiptKey(billID, itemID int64) string {
	return fmt.Sprintf("bills/%d/items/%d/receipt", billID, itemID)
}
