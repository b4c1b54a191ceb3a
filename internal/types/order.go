// Package types holds the core domain entities shared by the order book,
// the matching engine, the settlement client and the persistence layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Kind is the order type. Only Limit is matched by the engine; Market is
// accepted on the wire but rejected by ProcessOrder (spec §4.5, §9).
type Kind string

const (
	KindLimit  Kind = "limit"
	KindMarket Kind = "market"
)

// Status is the lifecycle state of an order (spec §4.5 state machine).
type Status string

const (
	StatusOpen            Status = "open"
	StatusPartiallyFilled Status = "partially_filled"
	StatusFilled          Status = "filled"
	StatusCancelled       Status = "cancelled"
)

// Order is the unit of trading intent. Quantity and Price use decimal.Decimal
// throughout instead of float64, resolving the precision gap flagged in
// spec.md §9.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      Kind
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Address   string
	Signature string
	Status    Status
	CreatedAt time.Time

	// Sequence is the monotonic arrival-order tiebreaker assigned by the
	// engine at insertion time (spec §4.1). Not part of the wire format.
	Sequence uint64

	// MessageID identifies the durable-queue delivery this order arrived
	// on; used by the idempotency cache (SPEC_FULL §4.5).
	MessageID string
}

// Remaining reports whether the order still has quantity left to match.
func (o *Order) Remaining() bool {
	return o.Quantity.IsPositive()
}

// InboundOrder is the wire shape accepted from the durable order queue
// (spec §6). Quantity and Price are decimal.Decimal, not float64: the type
// has its own UnmarshalJSON that reads the JSON number's raw token straight
// into an arbitrary-precision value, so no float64 intermediate ever enters
// the pipeline (spec §9's precision gap applies to the wire boundary too,
// not just the engine's internal arithmetic). It is validated before being
// converted into an Order.
type InboundOrder struct {
	Symbol    string          `json:"symbol" validate:"required"`
	Side      Side            `json:"side" validate:"required,oneof=buy sell"`
	Type      Kind            `json:"type" validate:"required,oneof=limit market"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
	Address   string          `json:"address" validate:"required"`
	Signature string          `json:"signature"`
}

// ToOrder converts a validated InboundOrder into the engine's domain type.
// CreatedAt, ID and Sequence are left zero-valued: the engine assigns
// Sequence, and the store assigns ID and CreatedAt when the order rests.
func (in *InboundOrder) ToOrder() *Order {
	return &Order{
		Symbol:    in.Symbol,
		Side:      in.Side,
		Type:      in.Type,
		Quantity:  in.Quantity,
		Price:     in.Price,
		Address:   in.Address,
		Signature: in.Signature,
		Status:    StatusOpen,
	}
}
