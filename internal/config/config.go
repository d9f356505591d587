// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from an
// optional YAML file and environment variables. Environment variables
// override the file, and the file overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at the YAML config file.
const FileEnv = "WEBTOPRINT_CONFIG"

// Config holds all application configuration values.
type Config struct {
	// Server settings
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Env  string `yaml:"env"` // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`

	// Valkey (Redis-compatible cache)
	ValkeyHost     string `yaml:"valkey_host"`
	ValkeyPort     string `yaml:"valkey_port"`
	ValkeyPassword string `yaml:"valkey_password"`
	ValkeyDB       int    `yaml:"valkey_db"`

	// Rendering service
	RenderURL     string        `yaml:"render_url"`
	RenderAPIKey  string        `yaml:"render_api_key"`
	RenderTimeout time.Duration `yaml:"render_timeout"`

	// Remote asset service. Empty URL stores assets in S3 instead.
	AssetURL    string `yaml:"asset_url"`
	AssetAPIKey string `yaml:"asset_api_key"`

	// S3-compatible object storage
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Region    string `yaml:"s3_region"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3PublicURL string `yaml:"s3_public_url"`

	// Personalization behaviour
	UpdateFirstPreviewOnLoad bool          `yaml:"update_first_preview_on_load"`
	PreserveFields           bool          `yaml:"preserve_fields"`
	ShareLinks               bool          `yaml:"share_links"`
	InPreviewEdit            bool          `yaml:"in_preview_edit"`
	TemplateMaxAge           time.Duration `yaml:"template_max_age"`
	PreviewCacheTTL          time.Duration `yaml:"preview_cache_ttl"`
	SessionIdleTimeout       time.Duration `yaml:"session_idle_timeout"` // live sessions untouched this long leave memory
	SecureCookies            bool          `yaml:"secure_cookies"`

	// TrustProxy takes the client IP from X-Forwarded-For. Enable only
	// behind a reverse proxy that sets the header.
	TrustProxy bool `yaml:"trust_proxy"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" or "json"
	LogFile   string `yaml:"log_file"`
}

// defaults returns the development configuration.
func defaults() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: "8080",
		Env:  "development",

		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "webtoprint",
		DBPassword: "changeme",
		DBName:     "webtoprint",

		ValkeyHost: "localhost",
		ValkeyPort: "6379",

		RenderTimeout: 30 * time.Second,

		S3Region: "fsn1",
		S3Bucket: "webtoprint-assets",

		UpdateFirstPreviewOnLoad: true,
		InPreviewEdit:            true,
		TemplateMaxAge:           time.Hour,
		PreviewCacheTTL:          30 * time.Minute,
		SessionIdleTimeout:       30 * time.Minute,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads configuration from the optional YAML file named by
// WEBTOPRINT_CONFIG and then from environment variables. Returns an error
// if critical values are missing in production mode.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.RenderURL == "" {
			return nil, fmt.Errorf("RENDER_API_URL must be set in production")
		}
	}
	if cfg.RenderTimeout <= 0 {
		return nil, fmt.Errorf("render timeout must be positive, got %s", cfg.RenderTimeout)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Host = envOrDefault("APP_HOST", c.Host)
	c.Port = envOrDefault("APP_PORT", c.Port)
	c.Env = envOrDefault("APP_ENV", c.Env)

	c.DBHost = envOrDefault("POSTGRES_HOST", c.DBHost)
	c.DBPort = envOrDefault("POSTGRES_PORT", c.DBPort)
	c.DBUser = envOrDefault("POSTGRES_USER", c.DBUser)
	c.DBPassword = envOrDefault("POSTGRES_PASSWORD", c.DBPassword)
	c.DBName = envOrDefault("POSTGRES_DB", c.DBName)

	c.ValkeyHost = envOrDefault("VALKEY_HOST", c.ValkeyHost)
	c.ValkeyPort = envOrDefault("VALKEY_PORT", c.ValkeyPort)
	c.ValkeyPassword = envOrDefault("VALKEY_PASSWORD", c.ValkeyPassword)

	c.RenderURL = envOrDefault("RENDER_API_URL", c.RenderURL)
	c.RenderAPIKey = envOrDefault("RENDER_API_KEY", c.RenderAPIKey)
	c.AssetURL = envOrDefault("ASSET_API_URL", c.AssetURL)
	c.AssetAPIKey = envOrDefault("ASSET_API_KEY", c.AssetAPIKey)

	c.S3Endpoint = envOrDefault("S3_ENDPOINT", c.S3Endpoint)
	c.S3Region = envOrDefault("S3_REGION", c.S3Region)
	c.S3AccessKey = envOrDefault("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = envOrDefault("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Bucket = envOrDefault("S3_BUCKET", c.S3Bucket)
	c.S3PublicURL = envOrDefault("S3_PUBLIC_URL", c.S3PublicURL)

	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOrDefault("LOG_FORMAT", c.LogFormat)
	c.LogFile = envOrDefault("LOG_FILE", c.LogFile)

	var errs []error
	c.ValkeyDB, errs = envInt("VALKEY_DB", c.ValkeyDB, errs)
	c.RenderTimeout, errs = envDuration("RENDER_TIMEOUT", c.RenderTimeout, errs)
	c.TemplateMaxAge, errs = envDuration("TEMPLATE_MAX_AGE", c.TemplateMaxAge, errs)
	c.PreviewCacheTTL, errs = envDuration("PREVIEW_CACHE_TTL", c.PreviewCacheTTL, errs)
	c.UpdateFirstPreviewOnLoad, errs = envBool("UPDATE_FIRST_PREVIEW_ON_LOAD", c.UpdateFirstPreviewOnLoad, errs)
	c.PreserveFields, errs = envBool("PRESERVE_FIELDS", c.PreserveFields, errs)
	c.ShareLinks, errs = envBool("SHARE_LINKS", c.ShareLinks, errs)
	c.InPreviewEdit, errs = envBool("IN_PREVIEW_EDIT", c.InPreviewEdit, errs)
	c.SessionIdleTimeout, errs = envDuration("SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout, errs)
	c.SecureCookies, errs = envBool("SECURE_COOKIES", c.SecureCookies, errs)
	c.TrustProxy, errs = envBool("TRUST_PROXY", c.TrustProxy, errs)
	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int, errs []error) (int, []error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return n, errs
}

func envBool(key string, fallback bool, errs []error) (bool, []error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return b, errs
}

func envDuration(key string, fallback time.Duration, errs []error) (time.Duration, []error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return d, errs
}
