// Command matcher boots the matching core process: configuration, the
// durable order queue consumer, the settlement client, the persistent
// store, the market-data publisher and the matching engine, wired together
// with go.uber.org/fx the way the teacher's cmd/marketdata/main.go wires
// its own services.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	appconfig "github.com/onchain-exchange/matching-core/internal/config"
	"github.com/onchain-exchange/matching-core/internal/engine"
	"github.com/onchain-exchange/matching-core/internal/marketdata"
	"github.com/onchain-exchange/matching-core/internal/persistence"
	"github.com/onchain-exchange/matching-core/internal/queue"
	"github.com/onchain-exchange/matching-core/internal/settlement"
)

func main() {
	app := fx.New(
		fx.Provide(
			context.Background,
			appconfig.Load,
			newLogger,
			newPrometheusRegistry,
			newStore,
			newSettlementClient,
			newPublisherTransport,
			newSubscriberTransport,
			newMarketDataPublisher,
			newDedup,
			newQueueConsumer,
			newEngineMetrics,
			newEngine,
		),
		fx.Invoke(
			startMetricsServer,
			recoverEngineState,
			runQueueConsumer,
		),
	)

	app.Run()
}

func newLogger(cfg *appconfig.Config) (*zap.Logger, error) {
	return cfg.NewLogger()
}

func newPrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newEngineMetrics(reg *prometheus.Registry) *engine.Metrics {
	return engine.NewMetrics(reg)
}

func newStore(cfg *appconfig.Config, logger *zap.Logger) (persistence.Store, error) {
	pcfg, err := cfg.PersistenceConfig()
	if err != nil {
		return nil, err
	}
	return persistence.Connect(pcfg, logger)
}

func newSettlementClient(ctx context.Context, cfg *appconfig.Config, logger *zap.Logger) (settlement.Client, error) {
	scfg, err := cfg.SettlementConfig()
	if err != nil {
		return nil, err
	}
	return settlement.Dial(ctx, scfg, logger)
}

// natsURL returns the broker URL from the spec-named RABBITMQ_URL env var,
// which in this deployment backs a NATS cluster substituting for RabbitMQ
// (no AMQP driver exists in the example pack; see SPEC_FULL.md §4.4/§5).
func natsURL(cfg *appconfig.Config) string {
	if cfg.RabbitMQURL != "" {
		return cfg.RabbitMQURL
	}
	return natsgo.DefaultURL
}

func newPublisherTransport(cfg *appconfig.Config, logger *zap.Logger) (message.Publisher, error) {
	watermillLogger := watermillZapAdapter{logger: logger}
	pub, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:         natsURL(cfg),
			NatsOptions: []natsgo.Option{natsgo.RetryOnFailedConnect(true), natsgo.MaxReconnects(-1)},
			Marshaler:   &nats.GobMarshaler{},
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("main: connect market-data/order publisher: %w", err)
	}
	return pub, nil
}

func newSubscriberTransport(cfg *appconfig.Config, logger *zap.Logger) (message.Subscriber, error) {
	watermillLogger := watermillZapAdapter{logger: logger}
	sub, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:         natsURL(cfg),
			NatsOptions: []natsgo.Option{natsgo.RetryOnFailedConnect(true), natsgo.MaxReconnects(-1)},
			Unmarshaler: &nats.GobMarshaler{},
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.Durable("matching-core"),
				natsgo.ManualAck(),
			},
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("main: connect order queue subscriber: %w", err)
	}
	return sub, nil
}

func newMarketDataPublisher(pub message.Publisher, logger *zap.Logger) *marketdata.Publisher {
	return marketdata.NewPublisher(pub, logger)
}

func newDedup(cfg *appconfig.Config) *queue.Dedup {
	ttl := cfg.DedupTTLSeconds
	if ttl <= 0 {
		ttl = 600
	}
	return queue.NewDedup(secondsToDuration(ttl))
}

func newQueueConsumer(sub message.Subscriber, dedup *queue.Dedup, logger *zap.Logger) *queue.Consumer {
	return queue.NewConsumer(sub, dedup, logger)
}

func newEngine(
	cfg *appconfig.Config,
	settlementClient settlement.Client,
	store persistence.Store,
	publisher *marketdata.Publisher,
	metrics *engine.Metrics,
	logger *zap.Logger,
) *engine.Engine {
	timeout := cfg.SubmissionTimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	return engine.NewWithTimeout(settlementClient, store, publisher, metrics, logger, secondsToDuration(timeout))
}

// startMetricsServer exposes the C10 prometheus collectors on
// PROMETHEUS_PORT, mirroring the teacher's metrics_module.go promhttp wiring.
func startMetricsServer(lc fx.Lifecycle, cfg *appconfig.Config, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.PrometheusPort), Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("main: metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// recoverEngineState runs load_orders_from_db once at boot (spec §4.5
// Recovery) before the queue consumer starts delivering new orders.
func recoverEngineState(lc fx.Lifecycle, eng *engine.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := eng.LoadOrdersFromDB(ctx); err != nil {
				logger.Error("main: recovery failed", zap.Error(err))
				return err
			}
			return nil
		},
	})
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// watermillZapAdapter satisfies watermill.LoggerAdapter atop the process's
// zap.Logger, following the teacher's pattern of bridging its own logger
// into third-party adapters rather than taking on watermill's default
// stdlib logger.
type watermillZapAdapter struct {
	logger *zap.Logger
}

func (a watermillZapAdapter) fields(f watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (a watermillZapAdapter) Error(msg string, err error, f watermill.LogFields) {
	a.logger.Error(msg, append(a.fields(f), zap.Error(err))...)
}

func (a watermillZapAdapter) Info(msg string, f watermill.LogFields) {
	a.logger.Info(msg, a.fields(f)...)
}

func (a watermillZapAdapter) Debug(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, a.fields(f)...)
}

func (a watermillZapAdapter) Trace(msg string, f watermill.LogFields) {
	a.logger.Debug(msg, a.fields(f)...)
}

func (a watermillZapAdapter) With(f watermill.LogFields) watermill.LoggerAdapter {
	return watermillZapAdapter{logger: a.logger.With(a.fields(f)...)}
}

func runQueueConsumer(lc fx.Lifecycle, consumer *queue.Consumer, eng *engine.Engine, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consumer.Run(ctx, eng.ProcessOrder); err != nil && ctx.Err() == nil {
					logger.Error("main: queue consumer stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
