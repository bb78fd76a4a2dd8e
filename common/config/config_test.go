package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

func load(t *testing.T, path string) testConfig {
	t.Helper()
	v := NewViper("testsvc", "TESTSVC", path)
	SetSharedDefaults(v, "testsvc", 9000)
	require.NoError(t, BindSharedEnv(v, "TESTSVC"))
	require.NoError(t, ReadInConfig(v))

	var cfg testConfig
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestSharedDefaults(t *testing.T) {
	cfg := load(t, "")

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, ":9000", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DefaultJWTSecret, cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.UsingDefaultSecret())
	assert.Zero(t, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "testsvc", cfg.Tracing.ServiceName)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-bare-env")
	t.Setenv("PORT", "7000")
	t.Setenv("TESTSVC_LOGGING_LEVEL", "debug")
	t.Setenv("TESTSVC_AUTH_TOKEN_TTL", "1h")

	cfg := load(t, "")

	assert.Equal(t, "from-bare-env", cfg.Auth.JWTSecret)
	assert.False(t, cfg.Auth.UsingDefaultSecret())
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestPrefixedSecretWins(t *testing.T) {
	t.Setenv("JWT_SECRET", "bare")
	t.Setenv("TESTSVC_AUTH_JWT_SECRET", "prefixed")

	cfg := load(t, "")
	assert.Equal(t, "prefixed", cfg.Auth.JWTSecret)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8123\nlogging:\n  format: text\n"), 0o600))

	cfg := load(t, path)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestExplicitMissingFile(t *testing.T) {
	v := NewViper("testsvc", "TESTSVC", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, ReadInConfig(v))
}

func TestTokenConfig(t *testing.T) {
	a := AuthConfig{JWTSecret: "s", TokenTTL: time.Minute, Issuer: "relay"}
	tc := a.TokenConfig()
	assert.Equal(t, "s", tc.Secret)
	assert.Equal(t, time.Minute, tc.TTL)
	assert.Equal(t, "relay", tc.Issuer)
}
