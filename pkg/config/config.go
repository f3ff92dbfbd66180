package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the orchestrator
type Config struct {
	// Unit source configuration
	Source SourceConfig `yaml:"source"`

	// Run policy
	Run RunConfig `yaml:"run"`

	// Concurrency configuration
	Concurrency ConcurrencyConfig `yaml:"concurrency"`

	// External unit processor
	Processor ProcessorConfig `yaml:"processor"`

	// Output configuration
	Output OutputConfig `yaml:"output"`

	// Report publishing
	Publish PublishConfig `yaml:"publish"`
}

// SourceConfig describes where unit descriptors come from
type SourceConfig struct {
	Directory         string   `yaml:"directory"`
	Manifest          string   `yaml:"manifest"` // defaults to units.{yaml,yml,json} in Directory
	BaselineDirectory string   `yaml:"baseline_directory"`
	Tiers             []string `yaml:"tiers"`
	Complexities      []string `yaml:"complexities"`
}

// RunConfig holds the run policy
type RunConfig struct {
	ContinueOnError bool   `yaml:"continue_on_error"`
	DryRun          bool   `yaml:"dry_run"`
	Scheduling      string `yaml:"scheduling"` // fixed, wavefront
}

// ConcurrencyConfig holds concurrency configuration
type ConcurrencyConfig struct {
	Limit         int           `yaml:"limit"`
	RateLimit     int           `yaml:"rate_limit"` // processor calls per second, 0 disables
	UnitTimeout   time.Duration `yaml:"unit_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// ProcessorConfig configures the HTTP unit processor
type ProcessorConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// OutputConfig holds output configuration
type OutputConfig struct {
	Directory     string   `yaml:"directory"`
	ReportFormats []string `yaml:"report_formats"` // json, markdown, csv, html
	Progress      bool     `yaml:"progress"`
	MetricsFile   string   `yaml:"metrics_file"`
	LogFile       string   `yaml:"log_file"`
	LogLevel      string   `yaml:"log_level"` // debug, info, warn, error
}

// PublishConfig holds optional report publishing targets
type PublishConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures report uploads to S3
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

// Enabled reports whether reports should be uploaded
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// NewDefaultConfig returns a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Directory: ".",
		},
		Run: RunConfig{
			Scheduling: string(models.SchedulingFixed),
		},
		Concurrency: ConcurrencyConfig{
			Limit:       4,
			UnitTimeout: 5 * time.Minute,
			RetryDelay:  2 * time.Second,
		},
		Output: OutputConfig{
			Directory:     "migration-output",
			ReportFormats: []string{"json", "markdown"},
			Progress:      true,
			LogLevel:      "info",
		},
		Publish: PublishConfig{
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "reports/",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := NewDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ManifestPath returns the manifest to load. An explicit manifest wins;
// otherwise the first existing units file in the source directory is used.
func (c *Config) ManifestPath() string {
	if c.Source.Manifest != "" {
		return c.Source.Manifest
	}
	for _, name := range []string{"units.yaml", "units.yml", "units.json"} {
		path := filepath.Join(c.Source.Directory, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(c.Source.Directory, "units.yaml")
}

// RunConfig converts the configuration into the immutable session config
func (c *Config) RunConfig() models.RunConfig {
	formats := make([]models.ReportFormat, 0, len(c.Output.ReportFormats))
	for _, f := range c.Output.ReportFormats {
		formats = append(formats, models.ReportFormat(f))
	}
	limit := c.Concurrency.Limit
	if limit < 1 {
		limit = 1
	}
	return models.RunConfig{
		ConcurrencyLimit:  limit,
		ContinueOnError:   c.Run.ContinueOnError,
		DryRun:            c.Run.DryRun,
		OutputDirectory:   c.Output.Directory,
		BaselineDirectory: c.Source.BaselineDirectory,
		ReportFormats:     formats,
		Scheduling:        models.Scheduling(c.Run.Scheduling),
		UnitTimeout:       c.Concurrency.UnitTimeout,
	}
}
