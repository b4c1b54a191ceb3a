package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "matching_core", cfg.DatabaseName)
	assert.Equal(t, int64(11155111), cfg.ChainID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.SubmissionTimeoutSeconds)
	assert.ElementsMatch(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.TokenSymbols)
}

func TestParseHostPort(t *testing.T) {
	host, port, err := parseHostPort("mongodb://db.internal:27017")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", host)
	assert.Equal(t, 27017, port)
}

func TestParseHostPort_DefaultsWhenMissing(t *testing.T) {
	host, port, err := parseHostPort("")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 5432, port)
}

func TestSettlementConfig_ErrorsWithoutTokenAddresses(t *testing.T) {
	cfg := &Config{TokenSymbols: []string{"BTC/USDT"}}
	_, err := cfg.SettlementConfig()
	assert.Error(t, err)
}
