package persistence

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/onchain-exchange/matching-core/internal/types"
)

// orderRecord is the gorm-mapped row for the "orders" collection named in
// spec §6. Quantity/Price are stored as strings to preserve decimal
// precision across the wire, matching the teacher's decimal(20,8) column
// style (internal/db/models/order.go) without relying on a database-native
// decimal type.
type orderRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Symbol    string `gorm:"type:varchar(20);index"`
	Side      string `gorm:"type:varchar(10)"`
	Type      string `gorm:"type:varchar(10)"`
	Quantity  string `gorm:"type:varchar(40)"`
	Price     string `gorm:"type:varchar(40)"`
	Address   string `gorm:"type:varchar(64);index"`
	Signature string `gorm:"type:text"`
	Status    string `gorm:"type:varchar(20);index"`
	CreatedAt time.Time
}

func (orderRecord) TableName() string { return "orders" }

func toRecord(o *types.Order) *orderRecord {
	return &orderRecord{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Type:      string(o.Type),
		Quantity:  o.Quantity.String(),
		Price:     o.Price.String(),
		Address:   o.Address,
		Signature: o.Signature,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

func fromRecord(r *orderRecord) (*types.Order, error) {
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return nil, err
	}
	return &types.Order{
		ID:        r.ID,
		Symbol:    r.Symbol,
		Side:      types.Side(r.Side),
		Type:      types.Kind(r.Type),
		Quantity:  qty,
		Price:     price,
		Address:   r.Address,
		Status:    types.Status(r.Status),
		CreatedAt: r.CreatedAt,
	}, nil
}

// tradeRecord is the gorm-mapped row for the "trades" collection.
type tradeRecord struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Symbol     string `gorm:"type:varchar(20);index"`
	Price      string `gorm:"type:varchar(40)"`
	Quantity   string `gorm:"type:varchar(40)"`
	BuyerAddr  string `gorm:"type:varchar(64)"`
	SellerAddr string `gorm:"type:varchar(64)"`
	TxHash     string `gorm:"type:varchar(80)"`
	Timestamp  time.Time
}

func (tradeRecord) TableName() string { return "trades" }

func toTradeRecord(t *types.Trade) *tradeRecord {
	return &tradeRecord{
		ID:         t.ID,
		Symbol:     t.Symbol,
		Price:      t.Price.String(),
		Quantity:   t.Quantity.String(),
		BuyerAddr:  t.BuyerAddr,
		SellerAddr: t.SellerAddr,
		TxHash:     t.TxHash,
		Timestamp:  t.Timestamp,
	}
}
