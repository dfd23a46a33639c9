package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/carebridge/webgateway/pkg/config"
	"github.com/carebridge/webgateway/pkg/database"
)

// Config holds all configuration for the web gateway.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`

	// Session
	SessionSecret string        `env:"SESSION_SECRET" envDefault:"your-secret-key-change-in-production"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	UserCacheTTL  time.Duration `env:"USER_CACHE_TTL" envDefault:"60s"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	// Redis session store
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka audit events; empty brokers disables publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Backend service URLs
	AccountServiceURL string `env:"ACCOUNT_SERVICE_URL" envDefault:"http://localhost:8001"`
	BookingServiceURL string `env:"BOOKING_SERVICE_URL" envDefault:"http://localhost:8002"`
	CareServiceURL    string `env:"CARE_SERVICE_URL" envDefault:"http://localhost:8003"`
	SocialServiceURL  string `env:"SOCIAL_SERVICE_URL" envDefault:"http://localhost:8004"`

	// Frontend asset origin, proxied under /static
	AssetOriginURL string `env:"ASSET_ORIGIN_URL" envDefault:"http://localhost:5173"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Rate limiting for the session endpoints
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Tracing
	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TraceSampleRate float64 `env:"TRACE_SAMPLE_RATE" envDefault:"0.1"`
	TracingDisabled bool    `env:"TRACING_DISABLED" envDefault:"false"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RedisConfig shapes the flat Redis settings for the database package.
func (c *Config) RedisConfig() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.Environment != "development" && c.SessionSecret == "your-secret-key-change-in-production" {
		return fmt.Errorf("SESSION_SECRET must be changed from default value in %s environment", c.Environment)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}
