package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config holds every runtime setting of the service.
type Config struct {
	AppPort string

	DatabaseDriver    string
	DatabaseDSN       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBLockTimeout     time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	RabbitMQURL      string
	RabbitMQExchange string

	RedisAddr    string
	CartCacheTTL time.Duration

	CheckoutMaxAttempts  int
	CheckoutRetryBackoff time.Duration

	LogLevel string
	SeedData bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=toko port=5432 sslmode=disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_LOCK_TIMEOUT", "5s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "order")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CART_CACHE_TTL", "15m")
	v.SetDefault("CHECKOUT_MAX_ATTEMPTS", 5)
	v.SetDefault("CHECKOUT_RETRY_BACKOFF", "50ms")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SEED_DATA", false)
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper builds a Config out of an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		AppPort:              v.GetString("APP_PORT"),
		DatabaseDriver:       strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		DBMaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
		DBConnMaxLifetime:    v.GetDuration("DB_CONN_MAX_LIFETIME"),
		DBLockTimeout:        v.GetDuration("DB_LOCK_TIMEOUT"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		JWTTTL:               v.GetDuration("JWT_TTL"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		RabbitMQExchange:     v.GetString("RABBITMQ_EXCHANGE"),
		RedisAddr:            v.GetString("REDIS_ADDR"),
		CartCacheTTL:         v.GetDuration("CART_CACHE_TTL"),
		CheckoutMaxAttempts:  v.GetInt("CHECKOUT_MAX_ATTEMPTS"),
		CheckoutRetryBackoff: v.GetDuration("CHECKOUT_RETRY_BACKOFF"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		SeedData:             v.GetBool("SEED_DATA"),
	}
}

// Validate reports the first setting that would prevent the service from starting.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.CheckoutMaxAttempts <= 0 {
		return fmt.Errorf("CHECKOUT_MAX_ATTEMPTS must be positive, got %d", c.CheckoutMaxAttempts)
	}
	if c.DBLockTimeout < 0 {
		return fmt.Errorf("DB_LOCK_TIMEOUT must not be negative")
	}
	return nil
}
