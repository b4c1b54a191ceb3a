// Package persistence implements the three durable-store operations the
// engine depends on (spec §4.3): loading open orders at boot, saving
// resting orders, and appending executed trades.
package persistence

import (
	"context"

	"github.com/onchain-exchange/matching-core/internal/types"
)

// Store is the durable order/trade ledger (spec §4.3, §6 "orders"/"trades"
// collections). Exposed as a narrow interface so the engine can be tested
// against an in-memory fake.
type Store interface {
	// LoadOpenOrders returns every order with status = open, used once at
	// boot to rebuild the in-memory book (spec §4.5 recovery).
	LoadOpenOrders(ctx context.Context) ([]*types.Order, error)

	// SaveRestingOrder persists an order that still has unfilled quantity
	// after matching, assigning its durable id and created_at.
	SaveRestingOrder(ctx context.Context, order *types.Order) error

	// SaveTrades appends a batch of executed trade records for symbol.
	SaveTrades(ctx context.Context, symbol string, trades []*types.Trade) error
}
