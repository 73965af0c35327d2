package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Outbox      OutboxConfig      `mapstructure:"outbox"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the repository backend. "memory" is for local runs only.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// LockTimeout bounds every row-lock wait inside a transaction. 0 waits forever.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`    // 0 = go-redis default (10 per CPU)
	DialTimeout time.Duration `mapstructure:"dial_timeout"` // also bounds the startup ping
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Stream        string `mapstructure:"stream"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// MarketplaceConfig carries the money rules. Rates are decimal strings ("0.04").
// Fee bounds are minor units; MaxFee 0 means unbounded.
type MarketplaceConfig struct {
	PlatformUserID             string           `mapstructure:"platform_user_id"`
	FeeRate                    string           `mapstructure:"fee_rate"`
	MinFee                     int64            `mapstructure:"min_fee"`
	MaxFee                     int64            `mapstructure:"max_fee"`
	PointsPerUnit              int64            `mapstructure:"points_per_unit"`
	VerificationThreshold      int64            `mapstructure:"verification_threshold"`
	DisputeWindow              time.Duration    `mapstructure:"dispute_window"`
	LowStockThreshold          int64            `mapstructure:"low_stock_threshold"`
	DeliveredRefundPenaltyRate string           `mapstructure:"delivered_refund_penalty_rate"`
	ConditionPenaltyPoints     map[string]int64 `mapstructure:"condition_penalty_points"`
	IdempotencyTTL             time.Duration    `mapstructure:"idempotency_ttl"`
	BidRateLimitPerMinute      int              `mapstructure:"bid_rate_limit_per_minute"`
	DefaultAuctionMinIncrement int64            `mapstructure:"default_auction_min_increment"`
	DefaultAntiSnipeWindow     time.Duration    `mapstructure:"default_anti_snipe_window"`
	DefaultAntiSnipeExtension  time.Duration    `mapstructure:"default_anti_snipe_extension"`
}

// SchedulerConfig holds cron specs for the periodic entry points.
type SchedulerConfig struct {
	ActivateAuctions string `mapstructure:"activate_auctions"`
	CloseAuctions    string `mapstructure:"close_auctions"`
	CompleteOrders   string `mapstructure:"complete_orders"`
	ExpireSales      string `mapstructure:"expire_sales"`
	BatchSize        int    `mapstructure:"batch_size"`
}

type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MKT_.
// Nested keys use underscore: MKT_DATABASE_HOST, MKT_MARKETPLACE_FEE_RATE, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream", "MARKETPLACE_EVENTS")
	v.SetDefault("nats.subject_prefix", "marketplace")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "escrow-marketplace")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("marketplace.platform_user_id", "")
	v.SetDefault("marketplace.fee_rate", "0.04")
	v.SetDefault("marketplace.min_fee", 0)
	v.SetDefault("marketplace.max_fee", 0)
	v.SetDefault("marketplace.points_per_unit", 10)
	v.SetDefault("marketplace.verification_threshold", 500)
	v.SetDefault("marketplace.dispute_window", "72h")
	v.SetDefault("marketplace.low_stock_threshold", 5)
	v.SetDefault("marketplace.delivered_refund_penalty_rate", "0")
	v.SetDefault("marketplace.condition_penalty_points", map[string]int64{
		"damaged":       5,
		"missing_parts": 3,
		"unsaleable":    7,
	})
	v.SetDefault("marketplace.idempotency_ttl", "24h")
	v.SetDefault("marketplace.bid_rate_limit_per_minute", 30)
	v.SetDefault("marketplace.default_auction_min_increment", 100)
	v.SetDefault("marketplace.default_anti_snipe_window", "2m")
	v.SetDefault("marketplace.default_anti_snipe_extension", "2m")

	v.SetDefault("scheduler.activate_auctions", "@every 1m")
	v.SetDefault("scheduler.close_auctions", "@every 1m")
	v.SetDefault("scheduler.complete_orders", "@every 15m")
	v.SetDefault("scheduler.expire_sales", "@every 10m")
	v.SetDefault("scheduler.batch_size", 100)

	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.max_attempts", 5)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// MKT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MKT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that cannot be defaulted safely.
func (c *Config) Validate() error {
	if _, err := uuid.Parse(c.Marketplace.PlatformUserID); err != nil {
		return fmt.Errorf("marketplace.platform_user_id: %w", err)
	}
	rate, err := decimal.NewFromString(c.Marketplace.FeeRate)
	if err != nil {
		return fmt.Errorf("marketplace.fee_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("marketplace.fee_rate must be within [0, 1], got %s", rate)
	}
	penalty, err := decimal.NewFromString(c.Marketplace.DeliveredRefundPenaltyRate)
	if err != nil {
		return fmt.Errorf("marketplace.delivered_refund_penalty_rate: %w", err)
	}
	if penalty.IsNegative() || penalty.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("marketplace.delivered_refund_penalty_rate must be within [0, 1], got %s", penalty)
	}
	if c.Marketplace.MaxFee > 0 && c.Marketplace.MaxFee < c.Marketplace.MinFee {
		return fmt.Errorf("marketplace.max_fee (%d) is below min_fee (%d)", c.Marketplace.MaxFee, c.Marketplace.MinFee)
	}
	if c.Marketplace.PointsPerUnit <= 0 {
		return fmt.Errorf("marketplace.points_per_unit must be positive")
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	return nil
}
