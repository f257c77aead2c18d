/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration. Values come from an optional
// YAML file (LINEPLAN_CONFIG_FILE) overridden by LINEPLAN_* environment
// variables.
type Config struct {
	Environment string          `yaml:"environment"`
	HTTPBind    string          `yaml:"http_bind"`
	HTTPPort    int             `yaml:"http_port"`
	DBBackend   DatabaseBackend `yaml:"db_backend"`
	DBDSN       string          `yaml:"db_dsn"`
	MetricsBind string          `yaml:"metrics_bind"`

	// Timezone the plant's operating calendars are expressed in.
	Timezone string `yaml:"timezone"`

	// ClockIntervalSeconds is the run status clock period.
	ClockIntervalSeconds int `yaml:"clock_interval_seconds"`

	// JWTSigningKey guards mutating API routes; empty disables auth (only
	// allowed outside production).
	JWTSigningKey string `yaml:"jwt_signing_key"`

	// Redis catalog cache (optional).
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// NATS event republishing (optional).
	NATSURL string `yaml:"nats_url"`

	// Tracing configuration.
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`
}

// Load reads the config file and environment, applies defaults, and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:          "development",
		HTTPBind:             "0.0.0.0",
		HTTPPort:             8080,
		DBBackend:            DatabasePostgres,
		MetricsBind:          "127.0.0.1:9000",
		Timezone:             "UTC",
		ClockIntervalSeconds: 30,
		OTLPEndpoint:         "localhost:4317",
		TracingSampleRate:    1.0,
	}

	if path := os.Getenv("LINEPLAN_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Environment = getEnv("LINEPLAN_ENV", cfg.Environment)
	cfg.HTTPBind = getEnv("LINEPLAN_HTTP_BIND", cfg.HTTPBind)
	cfg.HTTPPort = getEnvInt("LINEPLAN_HTTP_PORT", cfg.HTTPPort)
	cfg.DBBackend = DatabaseBackend(getEnv("LINEPLAN_DB_BACKEND", string(cfg.DBBackend)))
	cfg.DBDSN = getEnv("LINEPLAN_DB_DSN", cfg.DBDSN)
	cfg.MetricsBind = getEnv("LINEPLAN_METRICS_BIND", cfg.MetricsBind)
	cfg.Timezone = getEnv("LINEPLAN_TIMEZONE", cfg.Timezone)
	cfg.ClockIntervalSeconds = getEnvInt("LINEPLAN_CLOCK_INTERVAL_SECONDS", cfg.ClockIntervalSeconds)
	cfg.JWTSigningKey = getEnv("LINEPLAN_JWT_SIGNING_KEY", cfg.JWTSigningKey)
	cfg.RedisAddr = getEnv("LINEPLAN_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("LINEPLAN_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("LINEPLAN_REDIS_DB", cfg.RedisDB)
	cfg.NATSURL = getEnv("LINEPLAN_NATS_URL", cfg.NATSURL)
	cfg.TracingEnabled = getEnvBool("LINEPLAN_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.OTLPEndpoint = getEnv("LINEPLAN_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.TracingSampleRate = getEnvFloat("LINEPLAN_TRACING_SAMPLE_RATE", cfg.TracingSampleRate)

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("LINEPLAN_DB_DSN must be provided")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if strings.EqualFold(cfg.Environment, "production") && cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("LINEPLAN_JWT_SIGNING_KEY must be set in production")
	}

	return cfg, nil
}

// Location returns the configured plant timezone. Load validates it, so
// failures fall back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClockInterval returns the run status clock period.
func (c *Config) ClockInterval() time.Duration {
	if c.ClockIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ClockIntervalSeconds) * time.Second
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
