package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onchain-exchange/matching-core/internal/types"
)

func mkOrder(side types.Side, price, qty string, seq uint64) *types.Order {
	return &types.Order{
		Symbol:   "BTC/USDT",
		Side:     side,
		Type:     types.KindLimit,
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
		Sequence: seq,
	}
}

func TestBook_PriceTimePriority(t *testing.T) {
	b := New("BTC/USDT")
	b.Insert(mkOrder(types.SideSell, "100", "1.0", 1))
	b.Insert(mkOrder(types.SideSell, "100", "1.0", 2))

	best := b.PeekBest(types.SideSell)
	require.NotNil(t, best)
	assert.Equal(t, uint64(1), best.Sequence, "earlier arrival at equal price wins")
}

func TestBook_BidsPreferHigherPrice(t *testing.T) {
	b := New("BTC/USDT")
	b.Insert(mkOrder(types.SideBuy, "99", "1.0", 1))
	b.Insert(mkOrder(types.SideBuy, "101", "1.0", 2))

	best := b.PeekBest(types.SideBuy)
	require.NotNil(t, best)
	assert.True(t, best.Price.Equal(decimal.RequireFromString("101")))
}

func TestBook_AsksPreferLowerPrice(t *testing.T) {
	b := New("BTC/USDT")
	b.Insert(mkOrder(types.SideSell, "101", "1.0", 1))
	b.Insert(mkOrder(types.SideSell, "99", "1.0", 2))

	best := b.PeekBest(types.SideSell)
	require.NotNil(t, best)
	assert.True(t, best.Price.Equal(decimal.RequireFromString("99")))
}

func TestBook_PopBestRejectsRemainingQuantity(t *testing.T) {
	b := New("BTC/USDT")
	b.Insert(mkOrder(types.SideBuy, "100", "1.0", 1))

	_, err := b.PopBest(types.SideBuy)
	assert.ErrorIs(t, err, types.ErrPoppedWithRemainingQty)
}

func TestBook_PopBestSucceedsAtZeroQuantity(t *testing.T) {
	b := New("BTC/USDT")
	order := mkOrder(types.SideBuy, "100", "1.0", 1)
	b.Insert(order)

	order.Quantity = decimal.Zero
	popped, err := b.PopBest(types.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, order, popped)
	assert.Nil(t, b.PeekBest(types.SideBuy))
}

func TestBook_TopNAggregatesByPriceLevel(t *testing.T) {
	b := New("BTC/USDT")
	b.Insert(mkOrder(types.SideBuy, "100", "1.0", 1))
	b.Insert(mkOrder(types.SideBuy, "100", "0.5", 2))
	b.Insert(mkOrder(types.SideBuy, "99", "2.0", 3))

	levels := b.TopN(types.SideBuy, 10)
	require.Len(t, levels, 2)
	assert.True(t, levels[0].Price.Equal(decimal.RequireFromString("100")))
	assert.True(t, levels[0].Quantity.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, levels[1].Price.Equal(decimal.RequireFromString("99")))
}

func TestBook_Crossed(t *testing.T) {
	b := New("BTC/USDT")
	assert.False(t, b.Crossed(), "empty book is never crossed")

	b.Insert(mkOrder(types.SideBuy, "100", "1.0", 1))
	assert.False(t, b.Crossed(), "one-sided book is never crossed")

	b.Insert(mkOrder(types.SideSell, "101", "1.0", 2))
	assert.False(t, b.Crossed())
}
