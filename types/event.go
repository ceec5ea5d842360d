package types

import "time"

// Bill activity event kinds published to the message queue.
const (
	EventBillCreated  = "bill.created"
	EventBillUpdated  = "bill.updated"
	EventBillDeleted  = "bill.deleted"
	EventItemCreated  = "item.created"
	EventItemUpdated  = "item.updated"
	EventItemDeleted  = "item.deleted"
	EventBillRedeemed = "bill.share_redeemed"
)

// BillEvent is a bill-activity notification. Events are best effort:
// they are published after commit and never gate the mutation itself.
type BillEvent struct {
	Kind       string    `json:"kind"`
	BillID     int64     `json:"bill_id"`
	ItemID     int64     `json:"item_id,omitempty"`
	ActorID    int64     `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
