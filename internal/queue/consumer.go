// Package queue wraps the durable order queue named in spec §6
// (order_processing_queue, exchange orders_exchange, routing key
// order.new), grounded on the teacher's watermill event bus
// (internal/architecture/cqrs/eventbus/watermill_adapter.go).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/onchain-exchange/matching-core/internal/types"
)

// Topic is the exchange/topic new orders arrive on.
const Topic = "orders_exchange"

// Handler processes one validated inbound order. An error is logged and the
// message is still acked (spec §7: business-rule and engine-internal
// failures are discarded, not retried).
type Handler func(ctx context.Context, order *types.Order) error

// Consumer drains Topic from a watermill Subscriber, decoding, validating,
// and deduplicating each message before invoking Handler, then acks only
// after Handler returns (spec §5).
type Consumer struct {
	subscriber message.Subscriber
	validate   *validator.Validate
	dedup      *Dedup
	logger     *zap.Logger
}

// NewConsumer builds a Consumer. In production the Subscriber is backed by
// watermill-nats substituting for the RabbitMQ queue the spec names — no
// AMQP driver exists in the example pack (see SPEC_FULL.md §4.4/§5).
func NewConsumer(sub message.Subscriber, dedup *Dedup, logger *zap.Logger) *Consumer {
	validate := validator.New()
	// decimal.Decimal stores its value in unexported fields, so "gt"/"required"
	// tags would otherwise see an opaque struct. Registering a custom type
	// func teaches validator to compare the decimal's float64 value instead.
	validate.RegisterCustomTypeFunc(decimalTypeFunc, decimal.Decimal{})

	return &Consumer{
		subscriber: sub,
		validate:   validate,
		dedup:      dedup,
		logger:     logger,
	}
}

func decimalTypeFunc(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// Run blocks, dispatching every message on Topic to handle until ctx is
// cancelled or the subscription fails.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	messages, err := c.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("queue: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.process(ctx, msg, handle)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg *message.Message, handle Handler) {
	defer func() {
		if r := recover(); r != nil {
			// spec §7: engine-internal logic errors are acked, not
			// retried, to avoid poison-message loops.
			c.logger.Error("queue: recovered panic processing message", zap.Any("panic", r), zap.String("message_id", msg.UUID))
			msg.Ack()
		}
	}()

	if c.dedup.Seen(msg.UUID) {
		c.logger.Info("queue: dropping duplicate delivery", zap.String("message_id", msg.UUID))
		msg.Ack()
		return
	}

	var in types.InboundOrder
	if err := json.Unmarshal(msg.Payload, &in); err != nil {
		c.logger.Error("queue: malformed order payload", zap.String("message_id", msg.UUID), zap.Error(err))
		msg.Ack()
		return
	}

	if err := c.validate.Struct(&in); err != nil {
		c.logger.Error("queue: order failed validation", zap.String("message_id", msg.UUID), zap.Error(err))
		msg.Ack()
		return
	}

	order := in.ToOrder()
	order.MessageID = msg.UUID

	// spec §7: both business-rule rejections (unsupported type, invalid
	// fields) and engine-internal logic errors are logged and acked, not
	// retried — only persistence/settlement/broker failures, which the
	// engine already swallows internally, are allowed to leave a trade or
	// order unpersisted without blocking the queue.
	if err := handle(ctx, order); err != nil {
		c.logger.Error("queue: order rejected, acking and discarding",
			zap.String("message_id", msg.UUID), zap.Error(err))
	}

	msg.Ack()
}
