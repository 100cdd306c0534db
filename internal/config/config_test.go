package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossarb/internal/exchange"
)

const testYAML = `
logging:
  level: debug
metrics:
  addr: ":9100"
redis:
  addr: "redis:6379"
mexc:
  api_key: file-mexc-key
  secret_key: file-mexc-secret
gate:
  api_key: file-gate-key
  secret_key: file-gate-secret
  user_id: "12345"
strategy:
  symbol: BTC/USDT
  mode: spot_switching
  order_size_usdt: 500
  max_entry_cost_pct: -0.1
  min_profit_pct: 0.3
  max_hold_hours: 12
  min_switch_profit_pct: 0.15
  tick_interval: 250ms
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "spot_switching", cfg.Strategy.Mode)
	assert.Equal(t, 500.0, cfg.Strategy.OrderSizeUSDT)
	assert.Equal(t, 250*time.Millisecond, cfg.Strategy.TickInterval)

	// defaults fill what the file omits
	assert.Equal(t, 0.001, cfg.Strategy.DeltaTolerance)
	assert.Equal(t, 5.0, cfg.Strategy.RebalanceThresholdUSDT)
	assert.Equal(t, 2*time.Second, cfg.Strategy.QuoteMaxAge)

	symbol, err := cfg.Strategy.ParsedSymbol()
	require.NoError(t, err)
	assert.Equal(t, exchange.NewSymbol("BTC", "USDT"), symbol)
}

func TestEnvCredentialsOverrideFile(t *testing.T) {
	t.Setenv("MEXC_API_KEY", "env-mexc-key")
	t.Setenv("GATEIO_SECRET_KEY", "env-gate-secret")
	t.Setenv("DB_PASSWORD", "env-redis-pass")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-mexc-key", cfg.MEXC.APIKey)
	assert.Equal(t, "file-mexc-secret", cfg.MEXC.SecretKey)
	assert.Equal(t, "env-gate-secret", cfg.Gate.SecretKey)
	assert.Equal(t, "env-redis-pass", cfg.Redis.Password)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, testYAML))
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Strategy.Symbol = "BTCUSDT"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Strategy.Mode = "martingale"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Strategy.OrderSizeUSDT = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Strategy.DeltaTolerance = 0.5
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Strategy.TickInterval = 10 * time.Millisecond
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Gate.APIKey = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadFailsWithoutCredentials(t *testing.T) {
	t.Setenv("MEXC_API_KEY", "")
	t.Setenv("MEXC_SECRET_KEY", "")
	body := `
strategy:
  symbol: BTC/USDT
  order_size_usdt: 100
  min_profit_pct: 0.5
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mexc credentials")
}
