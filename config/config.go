// Package config loads the gateway settings from the environment, after
// reading a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingAPIBaseURL   = errors.New("API_BASE_URL is required")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrShortSessionSecret  = errors.New("SESSION_SECRET must be at least 16 characters")
	ErrInvalidRetries      = errors.New("API_RETRIES must be between 0 and 10")
	ErrInvalidRetryDelay   = errors.New("API_RETRY_DELAY must be a positive duration")
	ErrInvalidCatalogTTL   = errors.New("CATALOG_TTL must be a non-negative duration")
	ErrInvalidLogLevel     = errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	ErrInvalidFluentPort   = errors.New("FLUENT_PORT must be a port number")
	ErrInvalidOutboundRate = errors.New("API_RATE_LIMIT must be a non-negative number")
)

type Config struct {
	Port string

	APIBaseURL    string
	APIRetries    int
	APIRetryDelay time.Duration
	// APIRateLimit caps outbound calls per second; zero disables the limiter.
	APIRateLimit float64

	JWTSecret     string
	SessionSecret string
	SecureCookies bool

	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDB       string

	CORSOrigins      []string
	CatalogTTL       time.Duration
	AccessPolicyFile string
	StaticDir        string
	TicketSecret     string

	LogLevel   string
	LogColor   bool
	FluentHost string
	FluentPort int
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load(envFiles...)
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:             withDefault("PORT", "8080"),
		APIBaseURL:       strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		SecureCookies:    os.Getenv("SECURE_COOKIES") != "false",
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          withDefault("MONGO_DB", "taquilla"),
		CORSOrigins:      splitCSV(withDefault("CORS_ORIGINS", "http://localhost:5173")),
		AccessPolicyFile: os.Getenv("ACCESS_POLICY_FILE"),
		StaticDir:        os.Getenv("STATIC_DIR"),
		LogLevel:         strings.ToLower(withDefault("LOG_LEVEL", "info")),
		LogColor:         os.Getenv("LOG_COLOR") != "false",
		FluentHost:       os.Getenv("FLUENT_HOST"),
	}
	cfg.TicketSecret = withDefault("TICKET_SECRET", cfg.JWTSecret)

	if p := strings.TrimPrefix(cfg.Port, ":"); p != cfg.Port {
		cfg.Port = p
	}

	var err error
	if cfg.APIRetries, err = intEnv("API_RETRIES", 2); err != nil || cfg.APIRetries < 0 || cfg.APIRetries > 10 {
		return nil, ErrInvalidRetries
	}
	if cfg.APIRetryDelay, err = durationEnv("API_RETRY_DELAY", 300*time.Millisecond); err != nil || cfg.APIRetryDelay <= 0 {
		return nil, ErrInvalidRetryDelay
	}
	if cfg.CatalogTTL, err = durationEnv("CATALOG_TTL", 30*time.Second); err != nil || cfg.CatalogTTL < 0 {
		return nil, ErrInvalidCatalogTTL
	}
	if cfg.FluentPort, err = intEnv("FLUENT_PORT", 24224); err != nil || cfg.FluentPort <= 0 || cfg.FluentPort > 65535 {
		return nil, ErrInvalidFluentPort
	}
	if raw := os.Getenv("API_RATE_LIMIT"); raw != "" {
		cfg.APIRateLimit, err = strconv.ParseFloat(raw, 64)
		if err != nil || cfg.APIRateLimit < 0 {
			return nil, ErrInvalidOutboundRate
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.SessionSecret) < 16 {
		return ErrShortSessionSecret
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func withDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
