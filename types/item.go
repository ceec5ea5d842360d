package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single expense entry on a bill. Amounts are exact decimals
// from the wire to the database; they never pass through a binary float.
type Item struct {
	// ID is the unique identifier of the item.
	ID int64 `json:"id" db:"id"`

	// BillID references the owning bill.
	BillID int64 `json:"bill_id" db:"bill_id"`

	// Type is a free-form category such as "food" or "transport".
	Type string `json:"type" db:"item_type"`

	// TypeIcon is the client-side icon name for the category.
	TypeIcon string `json:"type_icon" db:"type_icon"`

	// Description is free text, up to 256 characters.
	Description string `json:"description" db:"description"`

	// Amount is the monetary amount. Serialized as a quoted decimal
	// string on the wire and stored as NUMERIC.
	Amount decimal.Decimal `json:"amount" db:"amount"`

	// Currency is the ISO-ish currency code supplied by the caller.
	Currency string `json:"currency" db:"currency"`

	// CreatedBy references the user that recorded the item. Immutable.
	CreatedBy int64 `json:"created_by" db:"created_by"`

	// PaidBy references the bill member that paid. Must be on the
	// bill's roster at creation and whenever it is changed.
	PaidBy int64 `json:"paid_by" db:"paid_by"`

	// ReceiptKey is the object-storage key of an attached receipt,
	// nil when no receipt has been uploaded.
	ReceiptKey *string `json:"receipt_key,omitempty" db:"receipt_key"`

	// CreatedTime is stamped server-side at creation. Immutable.
	CreatedTime time.Time `json:"created_time" db:"created_time"`

	// OccurredTime is the economically relevant timestamp, supplied by
	// the caller. Item listings order by it, most recent first.
	OccurredTime time.Time `json:"occurred_time" db:"occurred_time"`
}

// ItemUpdate is the partial field set callers may change on an item.
// Nil fields are left untouched. Creator, payer, creation time, and the
// owning bill are immutable after creation; the existing payer is still
// re-validated against the current roster on every update.
type ItemUpdate struct {
	Type         *string          `json:"type,omitempty"`
	TypeIcon     *string          `json:"type_icon,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Currency     *string          `json:"currency,omitempty"`
	OccurredTime *time.Time       `json:"occurred_time,omitempty"`
}
