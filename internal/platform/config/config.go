package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. Values come from environment
// variables so main stays lean; sensible defaults keep local development
// zero-setup.
type Config struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	AMQPURL       string
	NotifyQueue   string
	JWTSigningKey string

	// Identifier generation. ResidentCode prefixes numbers for certificates
	// linked to a registered citizen; NonResidentCode marks manual
	// applicants so the two populations stay visually distinguishable.
	ResidentCode    string
	NonResidentCode string

	// FiscalStartMonth is the first month of the financial year (1-12).
	FiscalStartMonth int

	// OTPTTL is the absolute lifetime of a one-time passcode.
	OTPTTL time.Duration

	SessionTTL time.Duration

	// BootstrapAdminUser seeds a first operator account at startup when both
	// values are set, so a fresh deployment is not locked out of the
	// back office.
	BootstrapAdminUser     string
	BootstrapAdminPassword string
}

// RedisConfig captures tuning for the Redis connection pool.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis derives pool settings from the configured URL.
func (c Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("CIVREG_ADDR", ":8080"),
		PostgresDSN:      os.Getenv("CIVREG_POSTGRES_DSN"),
		RedisURL:         os.Getenv("CIVREG_REDIS_URL"),
		AMQPURL:          os.Getenv("CIVREG_AMQP_URL"),
		NotifyQueue:      envOr("CIVREG_NOTIFY_QUEUE", "civreg.notifications"),
		JWTSigningKey:    envOr("CIVREG_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ResidentCode:     envOr("CIVREG_RESIDENT_CODE", "10901"),
		NonResidentCode:  envOr("CIVREG_NONRESIDENT_CODE", "99909"),
		FiscalStartMonth: envIntOr("CIVREG_FISCAL_START_MONTH", 7),
		OTPTTL:           envDurationOr("CIVREG_OTP_TTL", 10*time.Minute),
		SessionTTL:       envDurationOr("CIVREG_SESSION_TTL", 8*time.Hour),

		BootstrapAdminUser:     os.Getenv("CIVREG_BOOTSTRAP_ADMIN_USER"),
		BootstrapAdminPassword: os.Getenv("CIVREG_BOOTSTRAP_ADMIN_PASSWORD"),
	}
	if cfg.FiscalStartMonth < 1 || cfg.FiscalStartMonth > 12 {
		cfg.FiscalStartMonth = 7
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
