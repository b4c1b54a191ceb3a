package settlement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient is the test double spec §9 asks for: it records
// submit_trade calls without touching a chain.
type recordingClient struct {
	calls []submitCall
	fail  bool
}

type submitCall struct {
	Symbol, Buyer, Seller string
	Price, Quantity       decimal.Decimal
}

func (r *recordingClient) SubmitTrade(ctx context.Context, symbol, buyerAddr, sellerAddr string, price, quantity decimal.Decimal) (string, error) {
	r.calls = append(r.calls, submitCall{symbol, buyerAddr, sellerAddr, price, quantity})
	if r.fail {
		return "", assert.AnError
	}
	return "0xdeadbeef", nil
}

func TestRecordingClient_ImplementsClient(t *testing.T) {
	var _ Client = (*recordingClient)(nil)

	rc := &recordingClient{}
	hash, err := rc.SubmitTrade(context.Background(), "BTC/USDT", "0xbuyer", "0xseller", decimal.RequireFromString("30000"), decimal.RequireFromString("1.0"))
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", hash)
	require.Len(t, rc.calls, 1)
	assert.Equal(t, "BTC/USDT", rc.calls[0].Symbol)
}

func TestRecordingClient_FailurePath(t *testing.T) {
	rc := &recordingClient{fail: true}
	hash, err := rc.SubmitTrade(context.Background(), "BTC/USDT", "0xbuyer", "0xseller", decimal.RequireFromString("30000"), decimal.RequireFromString("1.0"))
	assert.Error(t, err)
	assert.Empty(t, hash)
}
