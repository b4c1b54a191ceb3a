package orderbook

import (
	"github.com/onchain-exchange/matching-core/internal/types"
)

// priceHeap is a container/heap of resting orders keyed on (±price,
// sequence): bids prefer higher price then earlier arrival, asks prefer
// lower price then earlier arrival (spec §4.1). Grounded on the teacher's
// OrderHeap in internal/core/matching/order_book.go, generalized to
// decimal.Decimal prices.
type priceHeap struct {
	orders  []*types.Order
	bidSide bool // true = max-heap on price (bids), false = min-heap (asks)
}

func newPriceHeap(bidSide bool) *priceHeap {
	return &priceHeap{bidSide: bidSide}
}

func (h *priceHeap) Len() int { return len(h.orders) }

func (h *priceHeap) Less(i, j int) bool {
	a, b := h.orders[i], h.orders[j]
	if !a.Price.Equal(b.Price) {
		if h.bidSide {
			return a.Price.GreaterThan(b.Price)
		}
		return a.Price.LessThan(b.Price)
	}
	// Ties break by arrival sequence, never by id or object identity (spec §4.1).
	return a.Sequence < b.Sequence
}

func (h *priceHeap) Swap(i, j int) {
	h.orders[i], h.orders[j] = h.orders[j], h.orders[i]
}

func (h *priceHeap) Push(x interface{}) {
	h.orders = append(h.orders, x.(*types.Order))
}

func (h *priceHeap) Pop() interface{} {
	old := h.orders
	n := len(old)
	order := old[n-1]
	old[n-1] = nil
	h.orders = old[:n-1]
	return order
}
