package config

import (
	"fmt"
	"net/url"

	pkgconfig "github.com/ucplabs/ucp-bridge/pkg/config"
)

// Config holds all configuration for the bridge.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"UCP_HTTP_PORT" envDefault:"8080"`

	// Commerce engine (Store API)
	EngineBaseURL        string `env:"ENGINE_BASE_URL" envDefault:"http://localhost:8091"`
	EngineTimeoutSeconds int    `env:"ENGINE_TIMEOUT_SECONDS" envDefault:"15"`

	// Store identity surfaced via discovery
	StoreName     string `env:"STORE_NAME" envDefault:"UCP Store"`
	StoreCurrency string `env:"STORE_CURRENCY" envDefault:"USD"`

	// Redis product cache
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	CacheEnabled    bool   `env:"PRODUCT_CACHE_ENABLED" envDefault:"true"`
	CacheTTLSeconds int    `env:"PRODUCT_CACHE_TTL_SECONDS" envDefault:"300"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load bridge config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTPPort)
	}
	if c.EngineTimeoutSeconds <= 0 {
		return fmt.Errorf("engine timeout must be positive, got %d", c.EngineTimeoutSeconds)
	}
	u, err := url.Parse(c.EngineBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid engine base URL: %q", c.EngineBaseURL)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	return nil
}
