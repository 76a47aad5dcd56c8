package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (DB connection, etc.), security settings
// - default: Values common across all environments (TTLs, timeouts, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	DB     DBConfig
	Redis  RedisConfig
	Cache  CacheConfig
	Lock   LockConfig
	Stream StreamConfig
	Log    LogConfig
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	PoolSize int    `envconfig:"REDIS_POOL_SIZE" default:"10"`
}

type CacheConfig struct {
	// Strategy selects the read path for shop queries:
	// "pass-through", "mutex" or "logical".
	Strategy       string        `envconfig:"CACHE_STRATEGY" default:"mutex"`
	ShopTTL        time.Duration `envconfig:"CACHE_SHOP_TTL" default:"30m"`
	NullTTL        time.Duration `envconfig:"CACHE_NULL_TTL" default:"2m"`
	RebuildWorkers int           `envconfig:"CACHE_REBUILD_WORKERS" default:"10"`
}

type LockConfig struct {
	Lease         time.Duration `envconfig:"LOCK_LEASE" default:"10s"`
	RetryInterval time.Duration `envconfig:"LOCK_RETRY_INTERVAL" default:"50ms"`
	MaxAttempts   int           `envconfig:"LOCK_MAX_ATTEMPTS" default:"20"`
}

type StreamConfig struct {
	Key      string        `envconfig:"ORDER_STREAM_KEY" default:"orders.log"`
	Group    string        `envconfig:"ORDER_STREAM_GROUP" default:"g1"`
	Consumer string        `envconfig:"ORDER_STREAM_CONSUMER" default:"c1"`
	Block    time.Duration `envconfig:"ORDER_STREAM_BLOCK" default:"2s"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr:     "localhost:16380", // Test Redis port
			PoolSize: 10,
		},
		Cache: CacheConfig{
			Strategy:       "mutex",
			ShopTTL:        30 * time.Minute,
			NullTTL:        2 * time.Minute,
			RebuildWorkers: 2,
		},
		Lock: LockConfig{
			Lease:         time.Second,
			RetryInterval: time.Millisecond,
			MaxAttempts:   3,
		},
		Stream: StreamConfig{
			Key:      "orders.log",
			Group:    "g1",
			Consumer: "c1",
			Block:    10 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "error", // Error level only for tests
		},
	}
}
