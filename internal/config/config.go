package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"routeScope/internal/cost"
	"routeScope/internal/model"
	"routeScope/internal/rank"
)

// EnvPrefix prefixes every environment override, e.g. ROUTESCOPE_RPC.
const EnvPrefix = "ROUTESCOPE"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL     string
	RPCTimeout time.Duration

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int
	PGDSN         string
	SnapshotOut   string

	CoinGeckoURL      string
	CoinGeckoAPIKey   string
	CoinGeckoPro      bool
	CoinGeckoPlatform string
	DefiLlamaURL      string
	DefiLlamaChain    string
	HTTPTimeout       time.Duration
	SourceRPS         float64
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryMaxBackoff   time.Duration
	BreakerThreshold  int
	BreakerWindow     time.Duration
	BreakerCooldown   time.Duration

	GasMode            cost.Mode
	GasPriceTTL        time.Duration
	GasBufferPercent   uint64
	LowLiquidityUSD    decimal.Decimal
	LowLiquidityUplift uint64

	PriceTTL     time.Duration
	MidTTL       time.Duration
	QuoteTTL     time.Duration
	LiquidityTTL time.Duration
	CostTTL      time.Duration

	AmountDecimals int32
	MaxConcurrency int
	RequestTimeout time.Duration
	Weights        rank.Weights
	NativeSymbol   string

	Listen         string
	MetricsListen  string
	AllowedOrigins []string
	LogLevel       string

	Tokens model.TokenTable
	Venues []model.Venue
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	gasMode, err := cost.ParseMode(v.GetString("gas-mode"))
	if err != nil {
		return Config{}, err
	}
	lowLiquidity, err := decimal.NewFromString(v.GetString("low-liquidity-usd"))
	if err != nil {
		return Config{}, fmt.Errorf("parse low-liquidity-usd: %w", err)
	}
	tokens, err := loadTokens(v)
	if err != nil {
		return Config{}, err
	}
	venues, err := loadVenues(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:     v.GetString("rpc"),
		RPCTimeout: v.GetDuration("rpc-timeout"),

		RedisAddr:     v.GetString("redis-addr"),
		RedisUsername: v.GetString("redis-username"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		PGDSN:         v.GetString("pg-dsn"),
		SnapshotOut:   v.GetString("snapshot-out"),

		CoinGeckoURL:      v.GetString("coingecko-url"),
		CoinGeckoAPIKey:   v.GetString("coingecko-api-key"),
		CoinGeckoPro:      v.GetBool("coingecko-pro"),
		CoinGeckoPlatform: v.GetString("coingecko-platform"),
		DefiLlamaURL:      v.GetString("defillama-url"),
		DefiLlamaChain:    v.GetString("defillama-chain"),
		HTTPTimeout:       v.GetDuration("http-timeout"),
		SourceRPS:         v.GetFloat64("source-rps"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RetryMaxBackoff:   v.GetDuration("retry-max-backoff"),
		BreakerThreshold:  v.GetInt("breaker-threshold"),
		BreakerWindow:     v.GetDuration("breaker-window"),
		BreakerCooldown:   v.GetDuration("breaker-cooldown"),

		GasMode:            gasMode,
		GasPriceTTL:        v.GetDuration("gas-price-ttl"),
		GasBufferPercent:   v.GetUint64("gas-buffer-percent"),
		LowLiquidityUSD:    lowLiquidity,
		LowLiquidityUplift: v.GetUint64("low-liquidity-uplift"),

		PriceTTL:     v.GetDuration("price-ttl"),
		MidTTL:       v.GetDuration("mid-ttl"),
		QuoteTTL:     v.GetDuration("quote-ttl"),
		LiquidityTTL: v.GetDuration("liquidity-ttl"),
		CostTTL:      v.GetDuration("cost-ttl"),

		AmountDecimals: v.GetInt32("amount-decimals"),
		MaxConcurrency: v.GetInt("max-concurrency"),
		RequestTimeout: v.GetDuration("request-timeout"),
		Weights: rank.Weights{
			Output:    v.GetFloat64("weights.output"),
			Liquidity: v.GetFloat64("weights.liquidity"),
			Fee:       v.GetFloat64("weights.fee"),
			Gas:       v.GetFloat64("weights.gas"),
		},
		NativeSymbol: model.NormalizeSymbol(v.GetString("native-symbol")),

		Listen:         v.GetString("listen"),
		MetricsListen:  v.GetString("metrics-listen"),
		AllowedOrigins: getStringSlice(v, "allowed-origins"),
		LogLevel:       v.GetString("log-level"),

		Tokens: tokens,
		Venues: venues,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc", "https://arb1.arbitrum.io/rpc")
	v.SetDefault("rpc-timeout", 5*time.Second)
	v.SetDefault("redis-db", 0)
	v.SetDefault("coingecko-platform", "arbitrum-one")
	v.SetDefault("defillama-chain", "arbitrum")
	v.SetDefault("http-timeout", 10*time.Second)
	v.SetDefault("source-rps", 5.0)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("retry-max-backoff", 5*time.Second)
	v.SetDefault("breaker-threshold", 5)
	v.SetDefault("breaker-window", 60*time.Second)
	v.SetDefault("breaker-cooldown", 30*time.Second)
	v.SetDefault("gas-mode", string(cost.ModeTable))
	v.SetDefault("gas-price-ttl", 15*time.Second)
	v.SetDefault("gas-buffer-percent", 5)
	v.SetDefault("low-liquidity-usd", "100000")
	v.SetDefault("low-liquidity-uplift", 15000)
	v.SetDefault("price-ttl", 30*time.Second)
	v.SetDefault("mid-ttl", time.Minute)
	v.SetDefault("quote-ttl", time.Minute)
	v.SetDefault("liquidity-ttl", time.Minute)
	v.SetDefault("cost-ttl", time.Minute)
	v.SetDefault("amount-decimals", 6)
	v.SetDefault("max-concurrency", 8)
	v.SetDefault("request-timeout", 10*time.Second)
	w := rank.DefaultWeights()
	v.SetDefault("weights.output", w.Output)
	v.SetDefault("weights.liquidity", w.Liquidity)
	v.SetDefault("weights.fee", w.Fee)
	v.SetDefault("weights.gas", w.Gas)
	v.SetDefault("native-symbol", "ETH")
	v.SetDefault("listen", ":8000")
	v.SetDefault("metrics-listen", "")
	v.SetDefault("log-level", "info")
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return errors.New("rpc is required")
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max-concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, ok := c.Tokens.Lookup(c.NativeSymbol); !ok {
		return fmt.Errorf("native-symbol %s is not in the token table", c.NativeSymbol)
	}
	for _, venue := range c.Venues {
		if err := checkPoolPairs(venue); err != nil {
			return err
		}
		for _, pool := range venue.Pools {
			a, b, err := pool.Symbols()
			if err != nil {
				return fmt.Errorf("venue %s: %w", venue.Name, err)
			}
			for _, sym := range []string{a, b} {
				if _, ok := c.Tokens.Lookup(sym); !ok {
					return fmt.Errorf("venue %s pool %s: unknown token %s", venue.Name, pool.Pair, sym)
				}
			}
		}
	}
	return nil
}

// NativePriceID returns the price feed id of the native token, or "" when the table has none.
func (c Config) NativePriceID() string {
	tok, _ := c.Tokens.Lookup(c.NativeSymbol)
	return tok.PriceFeedID
}

// CostConfig assembles the gas cost model settings.
func (c Config) CostConfig() cost.Config {
	table := cost.DefaultGasTable()
	table.LowLiquidityUSD = c.LowLiquidityUSD
	table.LowLiquidityUplift = c.LowLiquidityUplift
	return cost.Config{
		Mode:          c.GasMode,
		Table:         table,
		BufferPercent: c.GasBufferPercent,
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
