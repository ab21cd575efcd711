package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feeflow    FeeflowConfig    `yaml:"feeflow"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Source     SourceConfig     `yaml:"source"`
	Calculator CalculatorConfig `yaml:"calculator"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type FeeflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Namespace  string `yaml:"namespace"`
}

type SourceConfig struct {
	Mudrex MudrexSourceConfig `yaml:"mudrex"`
}

type MudrexSourceConfig struct {
	BaseURL          string               `yaml:"base_url"`
	OrderHistoryPath string               `yaml:"order_history_path"`
	FeeHistoryPath   string               `yaml:"fee_history_path"`
	PageSize         int                  `yaml:"page_size"`
	Timeout          time.Duration        `yaml:"timeout"`
	UserAgent        string               `yaml:"user_agent"`
	RateLimit        RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool   ConnectionPoolConfig `yaml:"connection_pool"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type CalculatorConfig struct {
	AlphaTier          int  `yaml:"alpha_tier"`
	APISourcedOnly     bool `yaml:"api_sourced_only"`
	CountUnknownOrigin bool `yaml:"count_unknown_origin"`
	IncludeActualFees  bool `yaml:"include_actual_fees"`
	FeeHistoryLimit    int  `yaml:"fee_history_limit"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// DefaultConfig returns the configuration used when a field is absent from
// the YAML file. Booleans that default to true live here; yaml.Unmarshal
// only overrides fields the file mentions.
func DefaultConfig() *Config {
	return &Config{
		Feeflow: FeeflowConfig{
			Name:    "Feeflow",
			Version: "dev",
		},
		Metrics: MetricsConfig{
			Namespace: "Feeflow",
		},
		Source: SourceConfig{
			Mudrex: MudrexSourceConfig{
				BaseURL:          "https://trade.mudrex.com/api/v1",
				OrderHistoryPath: "/futures/orders/history",
				FeeHistoryPath:   "/futures/fees/history",
				PageSize:         100,
				Timeout:          10 * time.Second,
				UserAgent:        "feeflow",
				RateLimit: RateLimitConfig{
					RequestsPerSecond: 5,
					BurstSize:         1,
				},
				ConnectionPool: ConnectionPoolConfig{
					MaxIdleConns:    10,
					MaxConnsPerHost: 10,
					IdleConnTimeout: 90 * time.Second,
				},
			},
		},
		Calculator: CalculatorConfig{
			AlphaTier:          0,
			APISourcedOnly:     true,
			CountUnknownOrigin: true,
			IncludeActualFees:  true,
			FeeHistoryLimit:    500,
		},
		Archive: ArchiveConfig{
			Dir: "data/pulls",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadConfig reads and validates the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the application relies on.
func (c *Config) Validate() error {
	src := c.Source.Mudrex
	if src.BaseURL == "" {
		return fmt.Errorf("source.mudrex.base_url must not be empty")
	}
	if src.PageSize <= 0 {
		return fmt.Errorf("source.mudrex.page_size must be positive, got %d", src.PageSize)
	}
	if src.Timeout <= 0 {
		return fmt.Errorf("source.mudrex.timeout must be positive, got %s", src.Timeout)
	}
	if src.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("source.mudrex.rate_limit.requests_per_second must be positive")
	}
	if c.Calculator.FeeHistoryLimit < 0 {
		return fmt.Errorf("calculator.fee_history_limit must not be negative")
	}
	if c.Archive.Enabled && c.Archive.Dir == "" {
		return fmt.Errorf("archive.dir must be set when archive is enabled")
	}
	if c.Storage.S3.Enabled {
		if !isValidS3Bucket(c.Storage.S3.Bucket) {
			return fmt.Errorf("invalid s3 bucket name %q", c.Storage.S3.Bucket)
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region must be set when s3 is enabled")
		}
	}
	return nil
}

var s3BucketRe = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if !s3BucketRe.MatchString(name) {
		return false
	}
	for i := 0; i+1 < len(name); i++ {
		if name[i] == '.' && name[i+1] == '.' {
			return false
		}
	}
	return true
}
