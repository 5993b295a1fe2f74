package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"desci/pkg/domain"
	pkgstrings "desci/pkg/platform/strings"
)

// Storage backends selectable with DESCI_STORAGE.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Server captures process level configuration.
type Server struct {
	Addr       string
	Storage    string
	AdminToken string
	LogLevel   string
	LogFormat  string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Ledger      LedgerConfig
	Economics   Economics
	RateLimit   RateLimitConfig

	OutboxRelayInterval time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LedgerConfig selects the token ledger. An empty URL keeps the in-process
// ledger.
type LedgerConfig struct {
	URL             string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// RateLimitConfig bounds write requests per client IP over a sliding window.
type RateLimitConfig struct {
	Disabled bool
	Writes   int
	Window   time.Duration
}

type Economics struct {
	BioCreditToken domain.Tag
	Treasury       domain.AccountID
	USDCToken      domain.AccountID
	ReportCost     domain.Amount
	USDCPerStudy   domain.Amount
	HashAlgorithm  string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:        getenv("DESCI_ADDR", ":8080"),
		Storage:     getenv("DESCI_STORAGE", StorageMemory),
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: getenv("KAFKA_TOPIC", "desci.events"),
		},
	}
	cfg.Kafka.Brokers = pkgstrings.SplitList(os.Getenv("KAFKA_BROKERS"))

	var err error
	cfg.Ledger.URL = os.Getenv("TOKEN_LEDGER_URL")
	if cfg.Ledger.Timeout, err = duration("TOKEN_LEDGER_TIMEOUT", 10*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.BreakerFailures, err = integer("TOKEN_LEDGER_BREAKER_FAILURES", 5); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.BreakerCooldown, err = duration("TOKEN_LEDGER_BREAKER_COOLDOWN", 30*time.Second); err != nil {
		return Server{}, err
	}
	cfg.RateLimit.Disabled = os.Getenv("RATE_LIMIT_DISABLED") == "true"
	if cfg.RateLimit.Writes, err = integer("RATE_LIMIT_WRITES", 60); err != nil {
		return Server{}, err
	}
	if cfg.RateLimit.Window, err = duration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.OutboxRelayInterval, err = duration("OUTBOX_RELAY_INTERVAL", time.Second); err != nil {
		return Server{}, err
	}

	if cfg.Economics.BioCreditToken, err = domain.ParseTag(getenv("BIOCREDIT_TOKEN_TAG", "BALANCE")); err != nil {
		return Server{}, fmt.Errorf("BIOCREDIT_TOKEN_TAG: %w", err)
	}
	if cfg.Economics.Treasury, err = domain.ParseAccountID(getenv("TREASURY_ACCOUNT", "treasury")); err != nil {
		return Server{}, fmt.Errorf("TREASURY_ACCOUNT: %w", err)
	}
	if cfg.Economics.USDCToken, err = domain.ParseAccountID(getenv("USDC_TOKEN", "USDC")); err != nil {
		return Server{}, fmt.Errorf("USDC_TOKEN: %w", err)
	}
	if cfg.Economics.ReportCost, err = domain.ParseAmount(getenv("REPORT_COST", "1")); err != nil {
		return Server{}, fmt.Errorf("REPORT_COST: %w", err)
	}
	if cfg.Economics.USDCPerStudy, err = domain.ParseAmount(getenv("USDC_PER_STUDY", "50000000")); err != nil {
		return Server{}, fmt.Errorf("USDC_PER_STUDY: %w", err)
	}
	cfg.Economics.HashAlgorithm = getenv("STUDY_HASH_ALGORITHM", "sha256")

	switch cfg.Storage {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required for %s storage", cfg.Storage)
		}
	case StorageRedis:
		if cfg.Redis.URL == "" {
			return Server{}, fmt.Errorf("REDIS_URL is required for %s storage", cfg.Storage)
		}
	default:
		return Server{}, fmt.Errorf("unknown DESCI_STORAGE %q", cfg.Storage)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return time.Duration(secs) * time.Second, nil
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, v)
	}
	return n, nil
}
