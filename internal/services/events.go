package services

import (
	"context"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
)

// EventPublisher receives bill-activity notifications after a mutation
// commits. Publishing is best effort and must never fail the mutation;
// implementations swallow and log their own errors.
type EventPublisher interface {
	Publish(ctx context.Context, event types.BillEvent)
}

// NopPublisher discards all events. Used when no message queue backend
// is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, types.BillEvent) {}
