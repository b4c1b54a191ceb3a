// Package config loads the matching core's configuration, grounded on the
// teacher's internal/config/config.go (spf13/viper, env + defaults,
// InitLogger helper) adapted to the literal environment variable names spec
// §6 lists instead of the teacher's TRADSYS_-prefixed, file-backed scheme.
package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/onchain-exchange/matching-core/internal/persistence"
	"github.com/onchain-exchange/matching-core/internal/settlement"
)

// Config is everything the process bootstrap (cmd/matcher) needs to wire
// C1-C11 together.
type Config struct {
	// MongoDBURL is kept under its spec-named key for documentation fidelity
	// (SPEC_FULL §4.3) even though the store it feeds is Postgres; Host/Port
	// are parsed out of it by parseHostPort.
	MongoDBURL   string `mapstructure:"MONGODB_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `mapstructure:"POSTGRES_SSLMODE"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	SettlementContractAddress string `mapstructure:"SETTLEMENT_CONTRACT_ADDRESS"`
	SepoliaRPCURL             string `mapstructure:"SEPOLIA_RPC_URL"`
	BackendWalletPrivateKey   string `mapstructure:"BACKEND_WALLET_PRIVATE_KEY"`
	ChainID                   int64  `mapstructure:"CHAIN_ID"`

	PrometheusPort int    `mapstructure:"PROMETHEUS_PORT"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	// DedupTTLSeconds bounds how long a processed message id is remembered
	// for re-delivery detection (SPEC_FULL §4.5 idempotency fix).
	DedupTTLSeconds int `mapstructure:"DEDUP_TTL_SECONDS"`

	// SubmissionTimeoutSeconds bounds each settlement submission and
	// persistence write the matching loop makes per order (spec §5's
	// per-submission timeout requirement).
	SubmissionTimeoutSeconds int `mapstructure:"SUBMISSION_TIMEOUT_SECONDS"`

	// TokenSymbols lists the symbols whose token addresses SettlementConfig
	// reads (default BTC/USDT and ETH/USDT). The addresses themselves have no
	// compiled-in default: each listed symbol must have TOKENS_<SYMBOL>_BASE
	// and TOKENS_<SYMBOL>_QUOTE set, or SettlementConfig returns an error.
	TokenSymbols []string `mapstructure:"TOKEN_SYMBOLS"`
}

var envKeys = []string{
	"MONGODB_URL", "DATABASE_NAME", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_SSLMODE",
	"RABBITMQ_URL",
	"SETTLEMENT_CONTRACT_ADDRESS", "SEPOLIA_RPC_URL", "BACKEND_WALLET_PRIVATE_KEY", "CHAIN_ID",
	"PROMETHEUS_PORT", "LOG_LEVEL", "DEDUP_TTL_SECONDS", "TOKEN_SYMBOLS", "SUBMISSION_TIMEOUT_SECONDS",
}

// Load reads configuration from the process environment, falling back to
// the defaults set below.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_NAME", "matching_core")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("CHAIN_ID", 11155111) // Sepolia
	v.SetDefault("PROMETHEUS_PORT", 9090)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEDUP_TTL_SECONDS", 600)
	v.SetDefault("TOKEN_SYMBOLS", []string{"BTC/USDT", "ETH/USDT"})
	v.SetDefault("SUBMISSION_TIMEOUT_SECONDS", 10)
}

// NewLogger builds the process zap.Logger from LogLevel, following the
// teacher's InitLogger helper.
func (c *Config) NewLogger() (*zap.Logger, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

// SettlementConfig builds the settlement package's Config from the loaded
// environment, reading the per-symbol token addresses (spec §6 "Token
// address mapping ... inline in the source") via TOKENS_<SYMBOL>_BASE /
// TOKENS_<SYMBOL>_QUOTE / TOKENS_<SYMBOL>_DECIMALS env vars.
func (c *Config) SettlementConfig() (settlement.Config, error) {
	cfg := settlement.Config{
		ContractAddress: common.HexToAddress(c.SettlementContractAddress),
		RPCURL:          c.SepoliaRPCURL,
		PrivateKeyHex:   c.BackendWalletPrivateKey,
		ChainID:         big.NewInt(c.ChainID),
		TokenAddresses:  map[string]settlement.TokenPair{},
		TokenDecimals:   map[string]int32{},
	}

	v := viper.New()
	v.AutomaticEnv()

	for _, symbol := range c.TokenSymbols {
		envBase := tokenEnvName(symbol, "BASE")
		envQuote := tokenEnvName(symbol, "QUOTE")

		base := v.GetString(envBase)
		quote := v.GetString(envQuote)
		if base == "" || quote == "" {
			return settlement.Config{}, fmt.Errorf("config: missing token addresses for %s (%s/%s)", symbol, envBase, envQuote)
		}

		cfg.TokenAddresses[symbol] = settlement.TokenPair{
			Base:  common.HexToAddress(base),
			Quote: common.HexToAddress(quote),
		}

		if decimals := v.GetInt32(tokenEnvName(symbol, "DECIMALS")); decimals != 0 {
			cfg.TokenDecimals[symbol] = decimals
		}
	}

	return cfg, nil
}

// PersistenceConfig builds the Postgres DSN fed by MONGODB_URL's host:port
// and DATABASE_NAME, substituting for the MongoDB driver absent from the
// example pack (SPEC_FULL §4.3).
func (c *Config) PersistenceConfig() (persistence.Config, error) {
	host, port, err := parseHostPort(c.MongoDBURL)
	if err != nil {
		return persistence.Config{}, fmt.Errorf("config: parse MONGODB_URL: %w", err)
	}

	return persistence.Config{
		DSN: persistence.BuildDSN(host, port, c.PostgresUser, c.PostgresPassword, c.DatabaseName, c.PostgresSSLMode),
	}, nil
}

func parseHostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, err
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := 5432
	if p := u.Port(); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port %q: %w", p, err)
		}
		port = parsed
	}
	return host, port, nil
}

func tokenEnvName(symbol, field string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(symbol, "/", "_"))
	return fmt.Sprintf("TOKENS_%s_%s", normalized, field)
}
