// Package config holds the configuration blocks shared by the relay services
// and the viper plumbing each service uses to load them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
)

// DefaultJWTSecret is the development signing secret. Services warn at
// startup when it is still in use.
const DefaultJWTSecret = "1234567890"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// AuthConfig holds the shared token signing configuration.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// TokenConfig converts the block into the token service's configuration.
func (a AuthConfig) TokenConfig() tokens.Config {
	return tokens.Config{Secret: a.JWTSecret, TTL: a.TokenTTL, Issuer: a.Issuer}
}

// UsingDefaultSecret reports whether the development secret is configured.
func (a AuthConfig) UsingDefaultSecret() bool {
	return a.JWTSecret == DefaultJWTSecret
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // stdout, otlp or none
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// NewViper returns a viper instance for serviceName. configPath names an
// explicit YAML file; when empty, config.yaml is searched for in the working
// directory and /etc/relay-stack/<service>. Environment variables are named
// <PREFIX>_<KEY> with dots replaced by underscores, e.g.
// BRIDGE_QUEUE_MAX_ATTEMPTS for queue.max_attempts.
func NewViper(serviceName, envPrefix, configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/relay-stack/" + serviceName)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetSharedDefaults registers defaults for the blocks every service carries.
func SetSharedDefaults(v *viper.Viper, serviceName string, port int) {
	v.SetDefault("server.port", port)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.token_ttl", "0s")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.service_name", serviceName)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// BindSharedEnv binds the unprefixed variables the deployments have always
// used: JWT_SECRET for the signing secret and PORT for the listen port. The
// prefixed names still win when both are set.
func BindSharedEnv(v *viper.Viper, envPrefix string) error {
	if err := v.BindEnv("auth.jwt_secret", envPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET"); err != nil {
		return err
	}
	return v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
}

// ReadInConfig reads the config file. Not finding one while searching the
// default locations is not an error; the service then runs on defaults and
// environment. An explicitly named file must exist.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}
