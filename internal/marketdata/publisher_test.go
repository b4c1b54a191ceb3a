package marketdata

import (
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onchain-exchange/matching-core/internal/orderbook"
	"github.com/onchain-exchange/matching-core/internal/types"
)

type recordingPublisher struct {
	topic string
	msgs  []*message.Message
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, messages...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestPublisher_PublishesTopOfBookSnapshot(t *testing.T) {
	book := orderbook.New("BTC/USDT")
	book.Insert(&types.Order{Side: types.SideBuy, Price: decimal.RequireFromString("100"), Quantity: decimal.RequireFromString("1")})
	book.Insert(&types.Order{Side: types.SideSell, Price: decimal.RequireFromString("101"), Quantity: decimal.RequireFromString("2")})

	rec := &recordingPublisher{}
	pub := NewPublisher(rec, zap.NewNop())

	pub.Publish("BTC/USDT", book)

	require.Equal(t, "orderbook.btcusdt", rec.topic, "the NATS subject must be the per-symbol routing key, not the shared exchange name")
	require.Len(t, rec.msgs, 1)

	msg := rec.msgs[0]
	assert.Equal(t, "orderbook.btcusdt", msg.Metadata.Get("routing_key"))
	assert.Equal(t, Exchange, msg.Metadata.Get("exchange"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snap))
	assert.Equal(t, "BTC/USDT", snap.Symbol)
	require.Len(t, snap.Bids, 1)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, "100", snap.Bids[0][0])
	assert.Equal(t, "101", snap.Asks[0][0])
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "btcusdt", normalizeSymbol("BTC/USDT"))
	assert.Equal(t, "ethusdc", normalizeSymbol("ETH/USDC"))
}
