// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Catalogue sources.
const (
	CatalogueSourceFile     = "file"
	CatalogueSourcePostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	App       AppConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Catalogue CatalogueConfig
	Database  DatabaseConfig
	Routing   RoutingConfig
	Auth      AuthConfig
	Worker    WorkerConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Port       int    `validate:"gte=1,lte=65535"`
	Env        string `validate:"required"`
	RequireTLS bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `validate:"oneof=trace debug info warn error"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string `validate:"required_if=Enabled true"`
}

// CatalogueConfig selects where hazards and profiles come from.
type CatalogueConfig struct {
	Source string `validate:"oneof=file postgres"`

	// Path is the YAML catalogue; empty means the embedded sample catalogue.
	Path string
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host            string
	Port            int `validate:"gte=1,lte=65535"`
	User            string
	Password        string
	Name            string
	SSLMode         string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int    `validate:"gte=1"`
	MaxIdleConns    int    `validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration

	// Enabled is set by DB_ENABLED and implied by a Postgres catalogue.
	Enabled bool
}

// RoutingConfig holds routing provider settings.
type RoutingConfig struct {
	ORSAPIKey  string
	ORSBaseURL string `validate:"omitempty,url"`
	CacheTTL   time.Duration
}

// AuthConfig holds operator token settings.
type AuthConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// WorkerConfig holds Pub/Sub worker settings.
type WorkerConfig struct {
	ProjectID    string
	Subscription string
	Concurrency  int `validate:"gte=1,lte=64"`
}

// IsDevelopment reports whether the service runs in a development environment.
func (c Config) IsDevelopment() bool {
	return c.App.Env == "development" || c.App.Env == "local"
}

// LogLevel returns the parsed zerolog level, defaulting to info.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || c.Log.Level == "" {
		return zerolog.InfoLevel
	}
	return level
}

var defaults = map[string]any{
	"app_port":                    8080,
	"app_env":                     "development",
	"require_tls":                 false,
	"log_level":                   "info",
	"otel_enabled":                false,
	"otel_exporter_otlp_endpoint": "localhost:4317",
	"catalogue_source":            CatalogueSourceFile,
	"catalogue_path":              "",
	"db_enabled":                  false,
	"db_host":                     "localhost",
	"db_port":                     5432,
	"db_user":                     "accessroute",
	"db_password":                 "localdev",
	"db_name":                     "accessroute",
	"db_ssl_mode":                 "disable",
	"db_max_open_conns":           10,
	"db_max_idle_conns":           5,
	"db_conn_max_lifetime":        "5m",
	"ors_api_key":                 "",
	"ors_base_url":                "",
	"routing_cache_ttl":           "5m",
	"jwt_signing_key":             "",
	"jwt_issuer":                  "accessroute",
	"jwt_audience":                "accessroute-admin",
	"pubsub_project_id":           "",
	"pubsub_subscription":         "accessroute-score-jobs",
	"worker_concurrency":          4,
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// file (.env, .yaml, .json) its values sit beneath the environment.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		App: AppConfig{
			Port:       v.GetInt("app_port"),
			Env:        v.GetString("app_env"),
			RequireTLS: v.GetBool("require_tls"),
		},
		Log: LogConfig{
			Level: strings.ToLower(v.GetString("log_level")),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("otel_enabled"),
			OTLPEndpoint: v.GetString("otel_exporter_otlp_endpoint"),
		},
		Catalogue: CatalogueConfig{
			Source: strings.ToLower(v.GetString("catalogue_source")),
			Path:   v.GetString("catalogue_path"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("db_host"),
			Port:            v.GetInt("db_port"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			SSLMode:         v.GetString("db_ssl_mode"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},
		Routing: RoutingConfig{
			ORSAPIKey:  v.GetString("ors_api_key"),
			ORSBaseURL: v.GetString("ors_base_url"),
			CacheTTL:   v.GetDuration("routing_cache_ttl"),
		},
		Auth: AuthConfig{
			SigningKey: v.GetString("jwt_signing_key"),
			Issuer:     v.GetString("jwt_issuer"),
			Audience:   v.GetString("jwt_audience"),
		},
		Worker: WorkerConfig{
			ProjectID:    v.GetString("pubsub_project_id"),
			Subscription: v.GetString("pubsub_subscription"),
			Concurrency:  v.GetInt("worker_concurrency"),
		},
	}
	cfg.Database.Enabled = v.GetBool("db_enabled") || cfg.Catalogue.Source == CatalogueSourcePostgres

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for values the service cannot start with.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
