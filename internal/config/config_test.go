package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessroute/accessroute/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, config.CatalogueSourceFile, cfg.Catalogue.Source)
	assert.Empty(t, cfg.Catalogue.Path)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Routing.CacheTTL)
	assert.Equal(t, "accessroute-admin", cfg.Auth.Audience)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REQUIRE_TLS", "true")
	t.Setenv("CATALOGUE_SOURCE", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("ROUTING_CACHE_TTL", "90s")
	t.Setenv("ORS_BASE_URL", "https://ors.example.org")
	t.Setenv("WORKER_CONCURRENCY", "8")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.App.RequireTLS)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, config.CatalogueSourcePostgres, cfg.Catalogue.Source)
	assert.True(t, cfg.Database.Enabled, "postgres catalogue implies a database")
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 90*time.Second, cfg.Routing.CacheTTL)
	assert.Equal(t, "https://ors.example.org", cfg.Routing.ORSBaseURL)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accessroute.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=7070\nJWT_ISSUER=file-issuer\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_ISSUER", "env-issuer")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, "env-issuer", cfg.Auth.Issuer, "environment wins over the file")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"port out of range", "APP_PORT", "70000", "App.Port"},
		{"unknown log level", "LOG_LEVEL", "chatty", "Log.Level"},
		{"unknown catalogue source", "CATALOGUE_SOURCE", "s3", "Catalogue.Source"},
		{"bad ssl mode", "DB_SSL_MODE", "sometimes", "Database.SSLMode"},
		{"bad provider url", "ORS_BASE_URL", "not a url", "Routing.ORSBaseURL"},
		{"zero concurrency", "WORKER_CONCURRENCY", "0", "Worker.Concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_IdleAboveOpen(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns + 1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxIdleConns")
}
