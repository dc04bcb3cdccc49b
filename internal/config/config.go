package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Addr        string
	Env         string
	StoreDriver string
	DSN         string
	JWTSecret   string
	RedisAddr   string
	ClientURL   string

	PairingTTL      time.Duration
	StoreTimeout    time.Duration
	DBRetryInterval time.Duration

	RateLimit  int
	RateWindow time.Duration
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		Addr:            getString("ADDR", ":8080"),
		Env:             getString("APP_ENV", "development"),
		StoreDriver:     getString("STORE_DRIVER", DriverPostgres),
		DSN:             os.Getenv("DB_DSN"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		ClientURL:       getString("CLIENT_URL", "http://localhost:3000"),
		PairingTTL:      getDuration("PAIRING_TTL", time.Hour),
		StoreTimeout:    getDuration("STORE_TIMEOUT", 5*time.Second),
		DBRetryInterval: getDuration("DB_RETRY_INTERVAL", 5*time.Second),
		RateLimit:       getInt("RATE_LIMIT", 100),
		RateWindow:      getDuration("RATE_WINDOW", 15*time.Minute),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DSN == "" {
			return errors.New("DB_DSN is not set")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.PairingTTL <= 0 {
		return errors.New("PAIRING_TTL must be positive")
	}
	return nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
