package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is every runtime setting, read from the environment.
type Config struct {
	Port              int
	Environment       string
	MongoURI          string
	MongoDatabase     string
	RedisAddress      string
	RedisPassword     string
	JWTSecret         string
	CORSOrigins       []string
	RateLimitPrefix   string
	IssueDailyLimit   int
	FreeIssueLimit    int
	BoostPriceCents   int64
	SubscriptionCents int64
	Currency          string
	CheckoutBaseURL   string
	SessionTTL        time.Duration
	// ConfirmWindow is how long after a checkout expires its payment
	// webhook is still honoured.
	ConfirmWindow     time.Duration
	LogLevel          string
	LogFormat         string
}

func (c Config) Production() bool { return c.Environment == "production" }

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found")
	}

	cfg := Config{
		Environment:     getenv("GO_ENV", "development"),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   getenv("MONGODB_DATABASE", "civicsync"),
		RedisAddress:    os.Getenv("REDIS_ADDRESS"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RateLimitPrefix: getenv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue-limit"),
		Currency:        strings.ToLower(getenv("BOOST_CURRENCY", "usd")),
		CheckoutBaseURL: getenv("CHECKOUT_BASE_URL", "http://localhost:5173"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       os.Getenv("LOG_FORMAT"),
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	var errs []error
	cfg.Port = intEnv("PORT", 8080, &errs)
	cfg.IssueDailyLimit = intEnv("ISSUE_DAILY_LIMIT", 10, &errs)
	cfg.FreeIssueLimit = intEnv("FREE_ISSUE_LIMIT", 3, &errs)
	cfg.BoostPriceCents = int64(intEnv("BOOST_PRICE_CENTS", 10000, &errs))
	cfg.SubscriptionCents = int64(intEnv("SUBSCRIPTION_PRICE_CENTS", 100000, &errs))

	cfg.SessionTTL = durationEnv("BOOST_SESSION_TTL", 30*time.Minute, &errs)
	cfg.ConfirmWindow = durationEnv("PAYMENT_CONFIRM_WINDOW", 72*time.Hour, &errs)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RequireServe checks the settings the API server cannot run without.
func (c Config) RequireServe() error {
	if c.MongoURI == "" {
		return errors.New("please define the MONGODB_URI environment variable")
	}
	if c.JWTSecret == "" {
		return errors.New("please define the JWT_SECRET environment variable")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, raw))
		return fallback
	}
	return n
}

func durationEnv(key string, def time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s %q", key, raw))
		return def
	}
	return d
}
