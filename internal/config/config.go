// Package config defines all configuration for the trading daemon.
// Config is loaded from a YAML file with API credentials overridable via
// environment variables, then frozen: nothing mutates it after Load.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"crossarb/internal/exchange"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MEXC     VenueConfig    `mapstructure:"mexc"`
	Gate     VenueConfig    `mapstructure:"gate"`
	Strategy StrategyConfig `mapstructure:"strategy"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the /metrics and /health HTTP server.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig points at the journal instance. Password comes from
// DB_PASSWORD when set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// VenueConfig holds one venue's API credentials and optional endpoint
// overrides for testing against mocks.
type VenueConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	UserID    string `mapstructure:"user_id"`
	BaseURL   string `mapstructure:"base_url"`
	WSBaseURL string `mapstructure:"ws_base_url"`
}

// StrategyConfig tunes the delta-neutral orchestrator.
//
//   - Symbol: traded pair as BASE/QUOTE, e.g. BTC/USDT.
//   - Mode: traditional (enter, hold, exit) or spot_switching (migrate the
//     spot leg between venues while the hedge stays put).
//   - OrderSizeUSDT: quote notional of one entry.
//   - MaxEntryCostPct: enter only when the spot ask trades at least this
//     far under the futures bid (negative means spot must be cheaper).
//   - MinSwitchProfitPct: minimum venue-to-venue edge to migrate the leg.
//   - DeltaTolerance: relative spot/futures mismatch that counts as neutral.
//   - RebalanceThresholdUSDT: smallest absolute imbalance worth a market order.
type StrategyConfig struct {
	Symbol             string  `mapstructure:"symbol"`
	Mode               string  `mapstructure:"mode"`
	OrderSizeUSDT      float64 `mapstructure:"order_size_usdt"`
	MaxEntryCostPct    float64 `mapstructure:"max_entry_cost_pct"`
	MinProfitPct       float64 `mapstructure:"min_profit_pct"`
	MaxHoldHours       float64 `mapstructure:"max_hold_hours"`
	MinSwitchProfitPct float64 `mapstructure:"min_switch_profit_pct"`

	DeltaTolerance         float64       `mapstructure:"delta_tolerance"`
	RebalanceThresholdUSDT float64       `mapstructure:"rebalance_threshold_usdt"`
	TickInterval           time.Duration `mapstructure:"tick_interval"`
	QuoteMaxAge            time.Duration `mapstructure:"quote_max_age"`
	MaxRecoveryAttempts    int           `mapstructure:"max_recovery_attempts"`
}

// ParsedSymbol splits BASE/QUOTE into a canonical symbol.
func (s *StrategyConfig) ParsedSymbol() (exchange.Symbol, error) {
	parts := strings.Split(s.Symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return exchange.Symbol{}, fmt.Errorf("strategy.symbol must be BASE/QUOTE, got %q", s.Symbol)
	}
	return exchange.NewSymbol(parts[0], parts[1]), nil
}

// Load reads config from a YAML file with env var overrides. Credentials
// always come from MEXC_API_KEY, MEXC_SECRET_KEY, GATEIO_API_KEY,
// GATEIO_SECRET_KEY and DB_PASSWORD when those are set.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Credentials from env win over the file so keys never need to live
	// on disk.
	if key := os.Getenv("MEXC_API_KEY"); key != "" {
		cfg.MEXC.APIKey = key
	}
	if secret := os.Getenv("MEXC_SECRET_KEY"); secret != "" {
		cfg.MEXC.SecretKey = secret
	}
	if key := os.Getenv("GATEIO_API_KEY"); key != "" {
		cfg.Gate.APIKey = key
	}
	if secret := os.Getenv("GATEIO_SECRET_KEY"); secret != "" {
		cfg.Gate.SecretKey = secret
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("strategy.mode", "traditional")
	v.SetDefault("strategy.delta_tolerance", 0.001)
	v.SetDefault("strategy.rebalance_threshold_usdt", 5.0)
	v.SetDefault("strategy.tick_interval", "500ms")
	v.SetDefault("strategy.quote_max_age", "2s")
	v.SetDefault("strategy.max_recovery_attempts", 5)
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if _, err := c.Strategy.ParsedSymbol(); err != nil {
		return err
	}
	switch c.Strategy.Mode {
	case "traditional", "spot_switching":
	default:
		return fmt.Errorf("strategy.mode must be traditional or spot_switching, got %q", c.Strategy.Mode)
	}
	if c.Strategy.OrderSizeUSDT <= 0 {
		return fmt.Errorf("strategy.order_size_usdt must be > 0")
	}
	if c.Strategy.MinProfitPct <= 0 {
		return fmt.Errorf("strategy.min_profit_pct must be > 0")
	}
	if c.Strategy.Mode == "spot_switching" && c.Strategy.MinSwitchProfitPct <= 0 {
		return fmt.Errorf("strategy.min_switch_profit_pct must be > 0 in spot_switching mode")
	}
	if c.Strategy.DeltaTolerance <= 0 || c.Strategy.DeltaTolerance > 0.05 {
		return fmt.Errorf("strategy.delta_tolerance must be in (0, 0.05]")
	}
	if c.Strategy.RebalanceThresholdUSDT < 0 {
		return fmt.Errorf("strategy.rebalance_threshold_usdt must be >= 0")
	}
	if c.Strategy.TickInterval < 100*time.Millisecond || c.Strategy.TickInterval > 5*time.Second {
		return fmt.Errorf("strategy.tick_interval must be between 100ms and 5s")
	}
	if c.Strategy.QuoteMaxAge <= 0 {
		return fmt.Errorf("strategy.quote_max_age must be > 0")
	}
	if c.MEXC.APIKey == "" || c.MEXC.SecretKey == "" {
		return fmt.Errorf("mexc credentials are required (set MEXC_API_KEY / MEXC_SECRET_KEY)")
	}
	if c.Gate.APIKey == "" || c.Gate.SecretKey == "" {
		return fmt.Errorf("gate credentials are required (set GATEIO_API_KEY / GATEIO_SECRET_KEY)")
	}
	return nil
}
