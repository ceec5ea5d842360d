package mq

import (
	"context"
	"encoding/json"

	"github.com/GoldenEggs-Workshop/spend-what-server/types"
	"github.com/rs/zerolog"
)

// ActivityChannel is the queue/topic the bill-activity feed publishes to.
const ActivityChannel = "bill-activity"

// ActivityPublisher turns bill events into JSON messages on the
// activity channel. Failures are logged and swallowed; publishing never
// fails the mutation that produced the event.
type ActivityPublisher struct {
	mq  *MQ
	log zerolog.Logger
}

func NewActivityPublisher(mq *MQ, log zerolog.Logger) *ActivityPublisher {
	return &ActivityPublisher{mq: mq, log: log}
}

func (p *ActivityPublisher) Publish(ctx context.Context, event types.BillEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("kind", event.Kind).Msg("marshal bill event")
		return
	}
	attrs := map[string]string{"kind": event.Kind}
	if _, err := p.mq.Publish(ctx, ActivityChannel, data, attrs); err != nil {
		p.log.Error().Err(err).
			Str("kind", event.Kind).
			Int64("bill_id", event.BillID).
			Msg("publish bill event")
	}
}
