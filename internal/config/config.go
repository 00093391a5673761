// Package config loads squadcore runtime settings from SQUADCORE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration shared by squadd and squadctl.
type Config struct {
	StorageDriver string `env:"SQUADCORE_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"SQUADCORE_SQLITE_PATH" envDefault:"squadcore.db"`
	PostgresDSN   string `env:"SQUADCORE_POSTGRES_DSN"`
	BoltPath      string `env:"SQUADCORE_BOLT_PATH" envDefault:"squadcore.bolt"`

	BlobDriver      string `env:"SQUADCORE_BLOB_DRIVER" envDefault:"fs"`
	BlobFSRoot      string `env:"SQUADCORE_BLOB_FS_ROOT" envDefault:"./archives"`
	BlobS3Bucket    string `env:"SQUADCORE_BLOB_S3_BUCKET"`
	BlobS3Region    string `env:"SQUADCORE_BLOB_S3_REGION" envDefault:"us-east-1"`
	BlobS3Endpoint  string `env:"SQUADCORE_BLOB_S3_ENDPOINT"`
	BlobS3PathStyle bool   `env:"SQUADCORE_BLOB_S3_PATH_STYLE"`

	HTTPAddr string `env:"SQUADCORE_HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"SQUADCORE_LOG_LEVEL" envDefault:"info"`
	GridSize int    `env:"SQUADCORE_GRID_SIZE" envDefault:"100"`
	Tracing  string `env:"SQUADCORE_TRACING" envDefault:"none"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment and validates enumerated values.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if !oneOf(c.StorageDriver, "memory", "sqlite", "postgres", "bolt") {
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if !oneOf(c.BlobDriver, "fs", "s3", "memory") {
		return fmt.Errorf("unknown blob driver %q", c.BlobDriver)
	}
	if c.BlobDriver == "s3" && c.BlobS3Bucket == "" {
		return fmt.Errorf("SQUADCORE_BLOB_S3_BUCKET is required for the s3 blob driver")
	}
	if !oneOf(c.Tracing, "none", "json", "otel") {
		return fmt.Errorf("unknown tracing mode %q", c.Tracing)
	}
	if c.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", c.GridSize)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
