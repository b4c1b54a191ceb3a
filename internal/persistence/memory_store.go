package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/onchain-exchange/matching-core/internal/types"
)

// MemoryStore is an in-memory Store used by engine and persistence tests.
// The matcher process does not use it; it always connects a GormStore.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*types.Order
	trades []*types.Trade
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*types.Order)}
}

func (m *MemoryStore) LoadOpenOrders(ctx context.Context) ([]*types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	open := make([]*types.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if o.Status == types.StatusOpen {
			cp := *o
			open = append(open, &cp)
		}
	}
	return open, nil
}

func (m *MemoryStore) SaveRestingOrder(ctx context.Context, order *types.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = ksuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MemoryStore) SaveTrades(ctx context.Context, symbol string, trades []*types.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range trades {
		if t.ID == "" {
			t.ID = ksuid.New().String()
		}
		if t.Timestamp.IsZero() {
			t.Timestamp = time.Now().UTC()
		}
		cp := *t
		m.trades = append(m.trades, &cp)
	}
	return nil
}

// Trades returns every trade saved so far, for assertions in tests.
func (m *MemoryStore) Trades() []*types.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Trade(nil), m.trades...)
}

// MarkStatus updates a stored order's status directly, used by tests that
// simulate the external DELETE/cancel path (spec §9: invisible to the live
// book until restart).
func (m *MemoryStore) MarkStatus(orderID string, status types.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.Status = status
	}
}
