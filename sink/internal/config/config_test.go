package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/relay-stack/sink/internal/repository"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3002, cfg.Server.Port)
	assert.Equal(t, repository.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "file://migrations", cfg.Database.Migrations)
	assert.Equal(t, "relay-events", cfg.OpenSearch.Index)
	assert.Equal(t, 0.2, cfg.Delay.Probability)
	assert.Equal(t, 500*time.Millisecond, cfg.Delay.Min)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delay.Max)
	assert.True(t, cfg.Auth.UsingDefaultSecret())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SINK_STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/relay")
	t.Setenv("SINK_DELAY_PROBABILITY", "0")
	t.Setenv("PORT", "4002")
	t.Setenv("JWT_SECRET", "shared-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, repository.BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://u:p@db:5432/relay", cfg.Database.URL)
	assert.Zero(t, cfg.Delay.Probability)
	assert.Equal(t, 4002, cfg.Server.Port)
	assert.Equal(t, "shared-secret", cfg.Auth.JWTSecret)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.yaml")
	yaml := `
store:
  backend: opensearch
opensearch:
  url: https://search:9200
  index: events-test
  tls_skip_verify: true
delay:
  probability: 1
  min: 10ms
  max: 20ms
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, repository.BackendOpenSearch, cfg.Store.Backend)
	assert.Equal(t, "https://search:9200", cfg.OpenSearch.URL)
	assert.Equal(t, "events-test", cfg.OpenSearch.Index)
	assert.True(t, cfg.OpenSearch.TLSSkipVerify)
	assert.Equal(t, 1.0, cfg.Delay.Probability)
	assert.Equal(t, 20*time.Millisecond, cfg.Delay.Max)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"SINK_STORE_BACKEND": "mongo"}},
		{name: "probability above one", env: map[string]string{"SINK_DELAY_PROBABILITY": "1.5"}},
		{name: "min above max", env: map[string]string{"SINK_DELAY_MIN": "2s"}},
		{name: "postgres without url", env: map[string]string{"SINK_STORE_BACKEND": "postgres", "SINK_DATABASE_URL": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
