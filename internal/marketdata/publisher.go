// Package marketdata publishes top-of-book snapshots to the topic exchange
// named in spec §4.4, grounded on the teacher's watermill event bus
// (internal/architecture/cqrs/eventbus/watermill_adapter.go).
package marketdata

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onchain-exchange/matching-core/internal/orderbook"
)

// Exchange is the topic exchange snapshots are published to (spec §6).
const Exchange = "market_data_exchange"

// Publisher emits a Snapshot for symbol every time that symbol's book is
// mutated. Fire-and-forget: a publish failure is logged, never returned to
// the matching loop, since lost snapshots self-heal on the next mutation
// (spec §4.4).
type Publisher struct {
	publisher message.Publisher
	logger    *zap.Logger
}

// NewPublisher wraps any watermill Publisher. In production this is backed
// by watermill-nats substituting for the RabbitMQ topic exchange the spec
// names — no AMQP driver exists in the example pack (see SPEC_FULL.md §4.4).
func NewPublisher(pub message.Publisher, logger *zap.Logger) *Publisher {
	return &Publisher{publisher: pub, logger: logger}
}

// Publish builds and sends the snapshot for symbol's current book state.
// Unlike AMQP, watermill-nats has no separate exchange/binding layer: its
// topic argument maps 1:1 onto the NATS subject. So the per-symbol routing
// key from spec §6 is published as the topic itself (Exchange is kept only
// as message metadata, for operators used to the AMQP naming), letting a
// subscriber bind to exactly one symbol's subject.
func (p *Publisher) Publish(symbol string, book *orderbook.Book) {
	snapshot := BuildSnapshot(symbol, book)

	payload, err := json.Marshal(snapshot)
	if err != nil {
		p.logger.Error("marketdata: marshal snapshot failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	routingKey := fmt.Sprintf("orderbook.%s", normalizeSymbol(symbol))
	msg.Metadata.Set("routing_key", routingKey)
	msg.Metadata.Set("exchange", Exchange)
	msg.Metadata.Set("symbol", symbol)

	if err := p.publisher.Publish(routingKey, msg); err != nil {
		p.logger.Warn("marketdata: publish snapshot failed",
			zap.String("symbol", symbol), zap.String("routing_key", routingKey), zap.Error(err))
	}
}
