package config

import (
	"fmt"
	"time"

	"github.com/telhawk-systems/relay-stack/common/config"
)

const (
	ServiceName = "bridge"
	EnvPrefix   = "BRIDGE"
	DefaultPort = 3001
)

type Config struct {
	Server    config.ServerConfig  `mapstructure:"server"`
	Auth      config.AuthConfig    `mapstructure:"auth"`
	Logging   config.LoggingConfig `mapstructure:"logging"`
	Tracing   config.TracingConfig `mapstructure:"tracing"`
	Ingress   IngressConfig        `mapstructure:"ingress"`
	Sink      SinkConfig           `mapstructure:"sink"`
	Queue     QueueConfig          `mapstructure:"queue"`
	RateLimit RateLimitConfig      `mapstructure:"rate_limit"`
	Redis     config.RedisConfig   `mapstructure:"redis"`
	DLQ       DLQConfig            `mapstructure:"dlq"`
	NATS      config.NATSConfig    `mapstructure:"nats"`
	CORS      CORSConfig           `mapstructure:"cors"`
}

type IngressConfig struct {
	GenerateMissingID bool `mapstructure:"generate_missing_id"`
}

type SinkConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Brand    string        `mapstructure:"brand"`
	CallerID string        `mapstructure:"caller_id"`
}

type QueueConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Capacity     int           `mapstructure:"capacity"`
	MaxInFlight  int           `mapstructure:"max_in_flight"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RetentionTTL time.Duration `mapstructure:"retention_ttl"`
	Backoff      BackoffConfig `mapstructure:"backoff"`
}

type BackoffConfig struct {
	Type  string        `mapstructure:"type"`
	Delay time.Duration `mapstructure:"delay"`
	Max   time.Duration `mapstructure:"max"`
}

type RateLimitConfig struct {
	Backend   string        `mapstructure:"backend"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// CORSConfig lets the browser event monitor call the ingress routes. An
// empty origin list disables CORS handling.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type DLQConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// DLQ backends.
const (
	DLQBackendFile      = "file"
	DLQBackendJetStream = "jetstream"
	DLQBackendNone      = "none"
)

func Load(configPath string) (*Config, error) {
	v := config.NewViper(ServiceName, EnvPrefix, configPath)
	config.SetSharedDefaults(v, ServiceName, DefaultPort)

	v.SetDefault("ingress.generate_missing_id", false)

	v.SetDefault("sink.url", "http://localhost:3002")
	v.SetDefault("sink.timeout", "3s")
	v.SetDefault("sink.brand", "testBrand")
	v.SetDefault("sink.caller_id", "bridge-service")

	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.capacity", 10000)
	v.SetDefault("queue.max_in_flight", 5)
	v.SetDefault("queue.poll_interval", "25ms")
	v.SetDefault("queue.retention_ttl", "10m")
	v.SetDefault("queue.backoff.type", "exponential")
	v.SetDefault("queue.backoff.delay", "1s")
	v.SetDefault("queue.backoff.max", "30s")

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.limit", 5)
	v.SetDefault("rate_limit.window", "1s")
	v.SetDefault("rate_limit.key_prefix", "relay:ratelimit:")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("dlq.backend", DLQBackendFile)
	v.SetDefault("dlq.path", "/var/lib/relay-stack/dlq")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 300)

	if err := config.BindSharedEnv(v, EnvPrefix); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}
	if err := v.BindEnv("sink.url", EnvPrefix+"_SINK_URL", "SINK_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}
	if err := config.ReadInConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.RateLimit.Limit < 1 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.limit and rate_limit.window must be positive")
	}
	switch c.Queue.Backoff.Type {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("queue.backoff.type must be fixed or exponential, got %q", c.Queue.Backoff.Type)
	}
	switch c.DLQ.Backend {
	case DLQBackendFile, DLQBackendJetStream, DLQBackendNone:
	default:
		return fmt.Errorf("dlq.backend must be file, jetstream or none, got %q", c.DLQ.Backend)
	}
	if c.Sink.URL == "" {
		return fmt.Errorf("sink.url is required")
	}
	return nil
}
