package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors named in SPEC_FULL.md §2 (C10).
type Metrics struct {
	OrdersProcessed     *prometheus.CounterVec
	TradesExecuted      *prometheus.CounterVec
	SettlementFailures  *prometheus.CounterVec
	BookDepth           *prometheus.GaugeVec
}

// NewMetrics registers the engine's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_processed_total",
			Help: "Orders accepted by the matching engine.",
		}, []string{"symbol", "side"}),
		TradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trades_executed_total",
			Help: "Trades produced by the matching loop.",
		}, []string{"symbol"}),
		SettlementFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_failures_total",
			Help: "Settlement submissions that did not return a transaction hash.",
		}, []string{"symbol"}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "book_depth",
			Help: "Resting order count on one side of a symbol's book.",
		}, []string{"symbol", "side"}),
	}

	reg.MustRegister(m.OrdersProcessed, m.TradesExecuted, m.SettlementFailures, m.BookDepth)
	return m
}
