package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onchain-exchange/matching-core/internal/types"
)

func newTestConsumer(t *testing.T) (*Consumer, message.Publisher) {
	t.Helper()
	// Persistent, so messages published before Run subscribes are still
	// delivered to it.
	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NewStdLogger(false, false))
	return NewConsumer(pubSub, NewDedup(time.Minute), zap.NewNop()), pubSub
}

func publishOrder(t *testing.T, pub message.Publisher, id string, order types.InboundOrder) {
	t.Helper()
	payload, err := json.Marshal(order)
	require.NoError(t, err)
	msg := message.NewMessage(id, payload)
	require.NoError(t, pub.Publish(Topic, msg))
}

func TestConsumer_HandlesOrderAndAcks(t *testing.T) {
	consumer, pub := newTestConsumer(t)
	publishOrder(t, pub, "msg-1", types.InboundOrder{
		Symbol: "BTC/USDT", Side: types.SideBuy, Type: types.KindLimit,
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), Address: "0xabc",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var handled []*types.Order
	go func() {
		_ = consumer.Run(ctx, func(_ context.Context, order *types.Order) error {
			handled = append(handled, order)
			cancel()
			return nil
		})
	}()

	<-ctx.Done()
	require.Len(t, handled, 1)
	assert.Equal(t, "BTC/USDT", handled[0].Symbol)
	assert.Equal(t, "msg-1", handled[0].MessageID)
}

func TestConsumer_DropsDuplicateMessageID(t *testing.T) {
	consumer, pub := newTestConsumer(t)
	order := types.InboundOrder{Symbol: "BTC/USDT", Side: types.SideBuy, Type: types.KindLimit,
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100), Address: "0xabc"}
	publishOrder(t, pub, "dup-1", order)
	publishOrder(t, pub, "dup-1", order)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	count := 0
	go func() {
		_ = consumer.Run(ctx, func(_ context.Context, _ *types.Order) error {
			count++
			return nil
		})
	}()

	<-ctx.Done()
	assert.Equal(t, 1, count, "redelivered message id must be processed at most once")
}
