package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
)

type Config struct {
	DBUser            string
	DBPassword        string
	DBName            string
	DBHost            string
	DBPort            string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	BotToken          string
	StoreDriver       string
	PremiumLink       string
	ChannelIDs        []int64
	ReferralThreshold int
	LogLevel          string
	LogFormat         string
	MetricsAddr       string
	UpdateDedupTTL    time.Duration

	// parse errors collected while reading the environment, reported by Validate
	problems []error
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "referral_bot"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		PremiumLink:   getEnv("PREMIUM_GROUP_LINK", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
	}

	channels, err := parseChannelIDs(getEnv("CHANNEL_IDS", "-1002390829801,-1002364162931"))
	if err != nil {
		cfg.problems = append(cfg.problems, err)
	}
	cfg.ChannelIDs = channels

	threshold, err := strconv.Atoi(getEnv("REFERRAL_THRESHOLD", "4"))
	if err != nil {
		cfg.problems = append(cfg.problems, fmt.Errorf("REFERRAL_THRESHOLD: %w", err))
	}
	cfg.ReferralThreshold = threshold

	ttl, err := time.ParseDuration(getEnv("UPDATE_DEDUP_TTL", "24h"))
	if err != nil {
		cfg.problems = append(cfg.problems, fmt.Errorf("UPDATE_DEDUP_TTL: %w", err))
	}
	cfg.UpdateDedupTTL = ttl

	return cfg
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.problems...)

	if c.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.PremiumLink == "" {
		errs = append(errs, errors.New("PREMIUM_GROUP_LINK is required"))
	}
	if len(c.ChannelIDs) == 0 {
		errs = append(errs, errors.New("CHANNEL_IDS must list at least one channel"))
	}
	if c.ReferralThreshold < 1 {
		errs = append(errs, fmt.Errorf("REFERRAL_THRESHOLD must be >= 1, got %d", c.ReferralThreshold))
	}
	if c.UpdateDedupTTL < 0 {
		errs = append(errs, fmt.Errorf("UPDATE_DEDUP_TTL must not be negative, got %s", c.UpdateDedupTTL))
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverRedis, c.StoreDriver))
	}

	return errors.Join(errs...)
}

func parseChannelIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CHANNEL_IDS: invalid channel id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
