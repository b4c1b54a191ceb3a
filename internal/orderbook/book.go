// Package orderbook implements the per-symbol, price-time-priority order
// book described in spec §4.1. It is a pure in-memory data structure: it
// does not talk to the queue, the chain, or the store — the engine owns
// that wiring (spec §5, §9 "cyclic references: none").
package orderbook

import (
	"container/heap"

	"github.com/shopspring/decimal"

	"github.com/onchain-exchange/matching-core/internal/types"
)

// Level is a single aggregated price level in a top-of-book snapshot.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Book is the bid/ask pair for one trading symbol.
type Book struct {
	Symbol string
	bids   *priceHeap
	asks   *priceHeap
}

// New creates an empty book for symbol.
func New(symbol string) *Book {
	b := &Book{
		Symbol: symbol,
		bids:   newPriceHeap(true),
		asks:   newPriceHeap(false),
	}
	heap.Init(b.bids)
	heap.Init(b.asks)
	return b
}

func (b *Book) sideHeap(side types.Side) *priceHeap {
	if side == types.SideBuy {
		return b.bids
	}
	return b.asks
}

// Insert adds a resting order to the appropriate side. The caller is
// responsible for assigning Sequence before calling Insert (spec §4.1).
func (b *Book) Insert(order *types.Order) {
	heap.Push(b.sideHeap(order.Side), order)
}

// PeekBest returns the best resting order on side without removing it, or
// nil if that side is empty.
func (b *Book) PeekBest(side types.Side) *types.Order {
	h := b.sideHeap(side)
	if h.Len() == 0 {
		return nil
	}
	return h.orders[0]
}

// PopBest removes and returns the best resting order on side. It is a
// programming error to pop an order with remaining quantity > 0 (spec
// §4.1 edge-case policy); callers must mutate quantity to zero first.
func (b *Book) PopBest(side types.Side) (*types.Order, error) {
	h := b.sideHeap(side)
	if h.Len() == 0 {
		return nil, types.ErrOrderNotFound
	}
	best := h.orders[0]
	if best.Quantity.IsPositive() {
		return nil, types.ErrPoppedWithRemainingQty
	}
	return heap.Pop(h).(*types.Order), nil
}

// TopN returns the best n aggregated price levels for side, best price
// first (spec §4.4, k=10).
func (b *Book) TopN(side types.Side, n int) []Level {
	h := b.sideHeap(side)

	// Copy + re-heapify rather than drain the live heap.
	scratch := &priceHeap{bidSide: h.bidSide, orders: append([]*types.Order(nil), h.orders...)}
	heap.Init(scratch)

	levels := make([]Level, 0, n)
	byPrice := map[string]int{}
	for scratch.Len() > 0 && len(levels) < n {
		order := heap.Pop(scratch).(*types.Order)
		key := order.Price.String()
		if idx, ok := byPrice[key]; ok {
			levels[idx].Quantity = levels[idx].Quantity.Add(order.Quantity)
			continue
		}
		byPrice[key] = len(levels)
		levels = append(levels, Level{Price: order.Price, Quantity: order.Quantity})
	}
	return levels
}

// Depth returns the number of resting orders on side.
func (b *Book) Depth(side types.Side) int {
	return b.sideHeap(side).Len()
}

// BestBidAsk returns the best bid and ask prices, or nil for an empty side.
// Used to check invariant B1 (no crossed book at rest).
func (b *Book) BestBidAsk() (bid, ask *decimal.Decimal) {
	if o := b.PeekBest(types.SideBuy); o != nil {
		p := o.Price
		bid = &p
	}
	if o := b.PeekBest(types.SideSell); o != nil {
		p := o.Price
		ask = &p
	}
	return
}

// Crossed reports whether the book violates invariant B1.
func (b *Book) Crossed() bool {
	bid, ask := b.BestBidAsk()
	if bid == nil || ask == nil {
		return false
	}
	return bid.GreaterThanOrEqual(*ask)
}
