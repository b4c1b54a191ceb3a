package persistence

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onchain-exchange/matching-core/internal/types"
)

func TestMemoryStore_LoadOpenOrdersOnlyReturnsOpen(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	open := &types.Order{Symbol: "BTC/USDT", Side: types.SideBuy, Type: types.KindLimit,
		Quantity: decimal.RequireFromString("1"), Price: decimal.RequireFromString("100"), Status: types.StatusOpen}
	filled := &types.Order{Symbol: "BTC/USDT", Side: types.SideBuy, Type: types.KindLimit,
		Quantity: decimal.RequireFromString("1"), Price: decimal.RequireFromString("100"), Status: types.StatusFilled}

	require.NoError(t, store.SaveRestingOrder(ctx, open))
	require.NoError(t, store.SaveRestingOrder(ctx, filled))

	loaded, err := store.LoadOpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, open.ID, loaded[0].ID)
}

func TestMemoryStore_SaveRestingOrderAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	order := &types.Order{Symbol: "BTC/USDT", Side: types.SideBuy, Type: types.KindLimit,
		Quantity: decimal.RequireFromString("1"), Price: decimal.RequireFromString("100"), Status: types.StatusOpen}

	require.NoError(t, store.SaveRestingOrder(ctx, order))
	assert.NotEmpty(t, order.ID)
	assert.False(t, order.CreatedAt.IsZero())
}

func TestMemoryStore_SaveTradesAppends(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	trade := &types.Trade{Symbol: "BTC/USDT", Price: decimal.RequireFromString("100"), Quantity: decimal.RequireFromString("1")}
	require.NoError(t, store.SaveTrades(ctx, "BTC/USDT", []*types.Trade{trade}))

	trades := store.Trades()
	require.Len(t, trades, 1)
	assert.NotEmpty(t, trades[0].ID)
}
