package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an executed match between a taker and a resting maker order
// (spec §3). Price is always the maker's price.
type Trade struct {
	ID          string
	Symbol      string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	BuyerAddr   string
	SellerAddr  string
	TxHash      string // empty when settlement failed (spec §4.2, §4.5)
	Timestamp   time.Time
}

// Settled reports whether the trade carries an on-chain receipt.
func (t *Trade) Settled() bool {
	return t.TxHash != ""
}
