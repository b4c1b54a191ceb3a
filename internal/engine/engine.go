// Package engine implements the central matching algorithm (spec §4.5),
// grounded on the teacher's core/matching/engine.go (Engine interface shape,
// ProcessOrder entry point) and core/matching/order_book.go (matching loop
// structure), generalized from float64 to decimal.Decimal and from the
// teacher's in-process trade model to settlement-backed trades.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/onchain-exchange/matching-core/internal/marketdata"
	"github.com/onchain-exchange/matching-core/internal/orderbook"
	"github.com/onchain-exchange/matching-core/internal/persistence"
	"github.com/onchain-exchange/matching-core/internal/settlement"
	"github.com/onchain-exchange/matching-core/internal/types"
)

// defaultSubmissionTimeout bounds how long a single settlement submission or
// persistence write may block the matching loop (spec §5's "a production
// implementation must impose a per-submission timeout").
const defaultSubmissionTimeout = 10 * time.Second

// Engine is the single-threaded matching core described in spec §5: exactly
// one goroutine is expected to call ProcessOrder, so the books it owns are
// never mutated concurrently with matching.
type Engine struct {
	mu    sync.Mutex
	books map[string]*orderbook.Book

	settlement settlement.Client
	store      persistence.Store
	publisher  *marketdata.Publisher
	metrics    *Metrics
	logger     *zap.Logger
	timeout    time.Duration
}

// New builds an Engine with empty books; call LoadOrdersFromDB to recover
// resting orders from a previous run. Settlement submissions and persistence
// writes are each bounded by defaultSubmissionTimeout; use NewWithTimeout to
// override it.
func New(settlementClient settlement.Client, store persistence.Store, publisher *marketdata.Publisher, metrics *Metrics, logger *zap.Logger) *Engine {
	return NewWithTimeout(settlementClient, store, publisher, metrics, logger, defaultSubmissionTimeout)
}

// NewWithTimeout is New with an explicit per-submission timeout, mainly for
// tests that want a short bound.
func NewWithTimeout(settlementClient settlement.Client, store persistence.Store, publisher *marketdata.Publisher, metrics *Metrics, logger *zap.Logger, timeout time.Duration) *Engine {
	return &Engine{
		books:      make(map[string]*orderbook.Book),
		settlement: settlementClient,
		store:      store,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		timeout:    timeout,
	}
}

func (e *Engine) bookFor(symbol string) *orderbook.Book {
	b, ok := e.books[symbol]
	if !ok {
		b = orderbook.New(symbol)
		e.books[symbol] = b
	}
	return b
}

// ProcessOrder implements process_order (spec §4.5): validates, dispatches
// on order type, runs the matching loop for limit orders, persists the
// resting remainder and any trades, then republishes the symbol's
// top-of-book snapshot.
func (e *Engine) ProcessOrder(ctx context.Context, order *types.Order) error {
	if order.Symbol == "" {
		return types.ErrMissingSymbol
	}
	if order.Type != types.KindLimit {
		return types.ErrUnsupportedType
	}
	if !order.Quantity.IsPositive() {
		return types.ErrInvalidQuantity
	}
	if !order.Price.IsPositive() {
		return types.ErrInvalidPrice
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	book := e.bookFor(order.Symbol)
	order.Sequence = nextSequence()

	trades, err := e.match(ctx, book, order)
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.OrdersProcessed.WithLabelValues(order.Symbol, string(order.Side)).Inc()
		e.metrics.TradesExecuted.WithLabelValues(order.Symbol).Add(float64(len(trades)))
		e.metrics.BookDepth.WithLabelValues(order.Symbol, string(types.SideBuy)).Set(float64(book.Depth(types.SideBuy)))
		e.metrics.BookDepth.WithLabelValues(order.Symbol, string(types.SideSell)).Set(float64(book.Depth(types.SideSell)))
	}

	if e.publisher != nil {
		e.publisher.Publish(order.Symbol, book)
	}

	return nil
}

// match runs the limit-order matching loop for order against the opposite
// side of book (spec §4.5). The taker's quantity is consumed in place;
// makers are decremented in place and popped once exhausted. Executed price
// is always the maker's (pricing rule, spec §4.5).
func (e *Engine) match(ctx context.Context, book *orderbook.Book, order *types.Order) ([]*types.Trade, error) {
	opposite := opposingSide(order.Side)
	var trades []*types.Trade

	for order.Quantity.IsPositive() {
		maker := book.PeekBest(opposite)
		if maker == nil || !crosses(order, maker) {
			break
		}

		fill := minDecimal(order.Quantity, maker.Quantity)

		// A settlement failure does not unwind the in-memory match (spec §7:
		// "proceed with in-memory match; trade persisted with null
		// tx_hash"); the trade is still recorded, with TxHash left empty.
		// The submission itself is bounded by e.timeout so a stalled chain
		// node cannot block the matching loop indefinitely (spec §5).
		buyer, seller := counterparties(order, maker)
		submitCtx, cancel := context.WithTimeout(ctx, e.timeout)
		txHash, settleErr := e.settlement.SubmitTrade(submitCtx, order.Symbol, buyer, seller, maker.Price, fill)
		cancel()
		if settleErr != nil {
			e.logger.Warn("engine: settlement submission failed, recording trade with null tx_hash",
				zap.String("symbol", order.Symbol), zap.Error(settleErr))
			if e.metrics != nil {
				e.metrics.SettlementFailures.WithLabelValues(order.Symbol).Inc()
			}
			txHash = ""
		}
		trades = append(trades, &types.Trade{
			Symbol:     order.Symbol,
			Price:      maker.Price,
			Quantity:   fill,
			BuyerAddr:  buyer,
			SellerAddr: seller,
			TxHash:     txHash,
		})

		order.Quantity = order.Quantity.Sub(fill)
		maker.Quantity = maker.Quantity.Sub(fill)

		if maker.Quantity.IsZero() {
			maker.Status = types.StatusFilled
			if _, err := book.PopBest(opposite); err != nil {
				return nil, fmt.Errorf("engine: pop exhausted maker: %w", err)
			}
		}
	}

	if order.Quantity.IsPositive() {
		// "resting" in spec §4.5's state machine is persisted under the
		// status=open value the store query in §4.3 filters on.
		order.Status = types.StatusOpen
		book.Insert(order)
		saveCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.store.SaveRestingOrder(saveCtx, order)
		cancel()
		if err != nil {
			e.logger.Error("engine: persist resting order failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	} else {
		order.Status = types.StatusFilled
	}

	if len(trades) > 0 {
		saveCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.store.SaveTrades(saveCtx, order.Symbol, trades)
		cancel()
		if err != nil {
			e.logger.Error("engine: persist trades failed", zap.String("symbol", order.Symbol), zap.Error(err))
		}
	}

	return trades, nil
}

// LoadOrdersFromDB implements load_orders_from_db (spec §4.5 Recovery):
// every open order from the store is reinserted into its book. Arrival
// order in the store is not a total order, so sequence numbers are
// reassigned here by created_at (ties broken by id) for determinism,
// resolving the gap spec §9 flags.
func (e *Engine) LoadOrdersFromDB(ctx context.Context) error {
	orders, err := e.store.LoadOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("engine: load open orders: %w", err)
	}

	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, order := range orders {
		order.Sequence = nextSequence()
		e.bookFor(order.Symbol).Insert(order)
	}

	e.logger.Info("engine: recovered resting orders", zap.Int("count", len(orders)))
	return nil
}

func crosses(taker, maker *types.Order) bool {
	if taker.Side == types.SideBuy {
		return maker.Price.LessThanOrEqual(taker.Price)
	}
	return maker.Price.GreaterThanOrEqual(taker.Price)
}

func counterparties(taker, maker *types.Order) (buyer, seller string) {
	if taker.Side == types.SideBuy {
		return taker.Address, maker.Address
	}
	return maker.Address, taker.Address
}

func opposingSide(side types.Side) types.Side {
	if side == types.SideBuy {
		return types.SideSell
	}
	return types.SideBuy
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

var sequenceMu sync.Mutex
var sequenceCounter uint64

// nextSequence hands out a process-local, monotonically increasing arrival
// sequence used for tie-breaking within a price level (spec §4.5).
func nextSequence() uint64 {
	sequenceMu.Lock()
	defer sequenceMu.Unlock()
	sequenceCounter++
	return sequenceCounter
}
