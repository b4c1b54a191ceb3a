package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/onchain-exchange/matching-core/internal/types"
)

// Config holds the connection settings for the persistent store: a single
// Postgres DSN, built by the config package from the environment variables
// spec §6 names (MONGODB_URL, DATABASE_NAME). No MongoDB driver exists
// anywhere in the example pack, so those variables feed gorm — the
// teacher's own persistence stack (internal/db/config.go) — while the
// three store operations and invariant P1 keep their spec'd semantics
// exactly (see SPEC_FULL.md §4.3).
type Config struct {
	DSN string
}

// BuildDSN builds a libpq connection string from the MONGODB_URL-sourced host
// and DATABASE_NAME-sourced database name, following
// internal/db/config.go's DSN() helper.
func BuildDSN(host string, port int, user, password, dbName, sslMode string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode,
	)
}

// GormStore implements Store against gorm.io/gorm + postgres, grounded on
// internal/db/config.go (zap-backed gorm logger, connection setup) and
// internal/db/repositories/order_repository.go (query shape).
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Connect opens the database and runs the two-table auto-migration.
func Connect(cfg Config, logger *zap.Logger) (*GormStore, error) {
	gormLogger := gormlogger.New(
		&zapGormWriter{logger: logger},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("persistence: connect: %w", err)
	}

	if err := db.AutoMigrate(&orderRecord{}, &tradeRecord{}); err != nil {
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}

	return &GormStore{db: db, logger: logger}, nil
}

type zapGormWriter struct {
	logger *zap.Logger
}

func (w *zapGormWriter) Printf(format string, args ...interface{}) {
	w.logger.Debug("gorm", zap.String("msg", fmt.Sprintf(format, args...)))
}

// LoadOpenOrders returns every order with status = open (spec §4.3).
func (s *GormStore) LoadOpenOrders(ctx context.Context) ([]*types.Order, error) {
	var records []*orderRecord
	if err := s.db.WithContext(ctx).
		Where("status = ?", string(types.StatusOpen)).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("persistence: load open orders: %w", err)
	}

	orders := make([]*types.Order, 0, len(records))
	for _, r := range records {
		order, err := fromRecord(r)
		if err != nil {
			s.logger.Error("persistence: skipping unparsable order record", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// SaveRestingOrder persists a resting order, assigning its durable id and
// created_at if not already set (spec §4.3).
func (s *GormStore) SaveRestingOrder(ctx context.Context, order *types.Order) error {
	if order.ID == "" {
		order.ID = ksuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	record := toRecord(order)
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		s.logger.Error("persistence: save resting order failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("persistence: save resting order: %w", err)
	}
	return nil
}

// SaveTrades appends a batch of trade records for symbol (spec §4.3).
// Note: fully-filled resting orders are not deleted from the store here —
// this mirrors the acknowledged gap in spec §4.3/§9, not an oversight.
func (s *GormStore) SaveTrades(ctx context.Context, symbol string, trades []*types.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	records := make([]*tradeRecord, 0, len(trades))
	for _, t := range trades {
		if t.ID == "" {
			t.ID = ksuid.New().String()
		}
		if t.Timestamp.IsZero() {
			t.Timestamp = time.Now().UTC()
		}
		records = append(records, toTradeRecord(t))
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		s.logger.Error("persistence: save trades failed",
			zap.String("symbol", symbol), zap.Error(err))
		return fmt.Errorf("persistence: save trades: %w", err)
	}
	return nil
}
