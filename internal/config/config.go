// Package config provides configuration management for the catalog ETL.
//
// Configuration is loaded from:
//  1. config.yaml file (optional)
//  2. Environment variables (DATABASE_HOST, INPUT_MATRIX_PATH, ...; the
//     container variables DB_USER, DB_PASS, DB_HOST, DB_NAME are honored)
//  3. Default values
//
// Import Path: catalogo.cali.gov.co/etl/internal/config
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Key strategies for recovering generated service ids.
const (
	KeyStrategyReturning = "returning"
	KeyStrategyReadback  = "readback"
)

// Config is the root configuration structure.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Input     InputConfig     `mapstructure:"input"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Load      LoadConfig      `mapstructure:"load"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	// Schema holds every target table.
	Schema string `mapstructure:"schema"`

	MaxConns int32 `mapstructure:"max_conns"`

	// The database container may still be starting when the job runs.
	ConnectTimeout       time.Duration `mapstructure:"connect_timeout"`
	ConnectRetryInterval time.Duration `mapstructure:"connect_retry_interval"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}

// InputConfig locates the two workbooks.
type InputConfig struct {
	MatrixPath    string `mapstructure:"matrix_path"`
	ArtifactsPath string `mapstructure:"artifacts_path"`
}

// ReferenceConfig selects the reference-data profile.
type ReferenceConfig struct {
	// Profile names an embedded profile (v6, v5).
	Profile string `mapstructure:"profile"`
	// Path overrides the embedded profile with an operator-maintained file.
	Path string `mapstructure:"path"`
}

// LoadConfig tunes the fact/relationship loader.
type LoadConfig struct {
	KeyStrategy string `mapstructure:"key_strategy"` // returning or readback
}

// MetricsConfig contains the optional Pushgateway target.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// legacyEnv maps config keys to the variable names the deployment already
// exports.
var legacyEnv = map[string][]string{
	"database.user":     {"DATABASE_USER", "DB_USER"},
	"database.password": {"DATABASE_PASSWORD", "DB_PASS"},
	"database.host":     {"DATABASE_HOST", "DB_HOST"},
	"database.database": {"DATABASE_DATABASE", "DB_NAME"},
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/catalogo-etl")

	// Maps nested config: input.matrix_path → INPUT_MATRIX_PATH
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input.MatrixPath) == "" {
		return fmt.Errorf("input.matrix_path must not be empty")
	}
	if strings.TrimSpace(c.Database.Schema) == "" {
		return fmt.Errorf("database.schema must not be empty")
	}
	if c.Reference.Profile == "" && c.Reference.Path == "" {
		return fmt.Errorf("reference.profile or reference.path must be set")
	}
	switch c.Load.KeyStrategy {
	case KeyStrategyReturning, KeyStrategyReadback:
	default:
		return fmt.Errorf("load.key_strategy must be %q or %q, got %q",
			KeyStrategyReturning, KeyStrategyReadback, c.Load.KeyStrategy)
	}
	if c.Database.ConnectTimeout < 0 || c.Database.ConnectRetryInterval <= 0 {
		return fmt.Errorf("database connect timeout/retry interval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Database
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "admin_datos")
	v.SetDefault("database.password", "cali_segura_2025")
	v.SetDefault("database.database", "catalogo_cali")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "catalogo")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.connect_timeout", "30s")
	v.SetDefault("database.connect_retry_interval", "1s")
	v.SetDefault("database.auto_migrate", false)

	// Inputs
	v.SetDefault("input.matrix_path", "/app/data/input/matriz_servicios_consolidada_final.xlsx")
	v.SetDefault("input.artifacts_path", "/app/data/input/Artefactos_Consolidado_feb2026.xlsx")

	// Reference data
	v.SetDefault("reference.profile", "v6")
	v.SetDefault("reference.path", "")

	// Loader
	v.SetDefault("load.key_strategy", KeyStrategyReturning)

	// Metrics
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "catalogo_etl")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
