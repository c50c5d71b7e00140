package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Config struct {
	Addr string

	// Authority is the issuance/validation authority the protocol
	// controller calls over HTTP.
	Authority AuthorityConfig

	// LedgerOwner is the principal ID authorized to append ownership
	// entries. Required; the ledger rejects every other caller.
	LedgerOwner string

	// PostgresURL enables the postgres ledger store when set; the
	// in-memory store is used otherwise.
	PostgresURL string

	Redis RedisConfig

	Kafka KafkaConfig

	RateLimit RateLimitConfig

	JWTSigningKey string
}

// RateLimitConfig bounds per-caller request rates on the protocol surface.
type RateLimitConfig struct {
	Disabled bool
	Limit    int
	Window   time.Duration
}

// AuthorityConfig describes the external issuance/validation authority.
type AuthorityConfig struct {
	// Mode selects the client: "http" calls the real authority at
	// BaseURL, "mock" runs the in-process ledger-backed authority for
	// local development.
	Mode    string
	BaseURL string
	// Token is the shared capability token sent on every call.
	Token   string
	Timeout time.Duration
}

// RedisConfig describes the optional Redis backing for the validation
// request queue. An empty URL disables Redis and falls back to memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig describes the optional Kafka audit sink. Empty brokers
// disable it; audit events then stay in the in-process store only.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr: envOr("STAGEPASS_ADDR", ":8080"),
		Authority: AuthorityConfig{
			Mode:    envOr("AUTHORITY_MODE", "mock"),
			BaseURL: envOr("AUTHORITY_URL", "http://localhost:9090"),
			Token:   os.Getenv("AUTHORITY_TOKEN"),
			Timeout: envDurationOr("AUTHORITY_TIMEOUT", 5*time.Second),
		},
		LedgerOwner: os.Getenv("LEDGER_OWNER_PRINCIPAL"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("AUDIT_TOPIC", "stagepass.audit"),
		},
		RateLimit: RateLimitConfig{
			Disabled: os.Getenv("RATE_LIMIT_DISABLED") == "true",
			Limit:    envIntOr("RATE_LIMIT", 60),
			Window:   envDurationOr("RATE_LIMIT_WINDOW", time.Minute),
		},
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if cfg.JWTSigningKey == "" {
		// Development default - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
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
