package config

import (
	"fmt"
	"net/url"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msg := "configuration validation failed:\n"
	for _, err := range e {
		msg += fmt.Sprintf("  - %s\n", err.Error())
	}
	return msg
}

// Validate validates the configuration and returns any errors
func (c *Config) Validate() error {
	var errs ValidationErrors

	// Validate source configuration
	if c.Source.Directory == "" && c.Source.Manifest == "" {
		errs = append(errs, ValidationError{
			Field:   "source.directory",
			Message: "either directory or manifest must be specified",
		})
	}

	for i, complexity := range c.Source.Complexities {
		if !models.Complexity(complexity).Known() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("source.complexities[%d]", i),
				Message: "must be one of: low, medium, high",
			})
		}
	}

	// Validate run policy
	validScheduling := map[string]bool{string(models.SchedulingFixed): true, string(models.SchedulingWavefront): true}
	if !validScheduling[c.Run.Scheduling] {
		errs = append(errs, ValidationError{
			Field:   "run.scheduling",
			Message: "must be one of: fixed, wavefront",
		})
	}

	// Validate processor configuration (skip for dry-run)
	if !c.Run.DryRun {
		if c.Processor.URL == "" {
			errs = append(errs, ValidationError{Field: "processor.url", Message: "URL is required unless running with --dry-run"})
		} else if u, err := url.Parse(c.Processor.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: "processor.url", Message: "invalid URL format"})
		}
	}

	if c.Processor.Token != "" && c.Processor.Username != "" {
		errs = append(errs, ValidationError{
			Field:   "processor.token",
			Message: "token and basic auth username are mutually exclusive",
		})
	}

	// Validate concurrency configuration
	if c.Concurrency.Limit < 1 {
		errs = append(errs, ValidationError{Field: "concurrency.limit", Message: "must be at least 1"})
	}

	if c.Concurrency.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "concurrency.rate_limit", Message: "cannot be negative"})
	}

	if c.Concurrency.UnitTimeout < 0 {
		errs = append(errs, ValidationError{Field: "concurrency.unit_timeout", Message: "cannot be negative"})
	}

	if c.Concurrency.RetryAttempts < 0 {
		errs = append(errs, ValidationError{Field: "concurrency.retry_attempts", Message: "cannot be negative"})
	}

	// Validate output configuration
	if c.Output.Directory == "" {
		errs = append(errs, ValidationError{Field: "output.directory", Message: "directory is required"})
	}

	seen := make(map[string]bool)
	for i, format := range c.Output.ReportFormats {
		if !models.ReportFormat(format).Valid() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("output.report_formats[%d]", i),
				Message: "must be one of: json, markdown, csv, html",
			})
		}
		if seen[format] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("output.report_formats[%d]", i),
				Message: fmt.Sprintf("duplicate format %q", format),
			})
		}
		seen[format] = true
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Output.LogLevel] {
		errs = append(errs, ValidationError{
			Field:   "output.log_level",
			Message: "must be one of: debug, info, warn, error",
		})
	}

	// Validate publishing configuration
	if c.Publish.S3.Enabled() {
		if c.Publish.S3.Region == "" {
			errs = append(errs, ValidationError{Field: "publish.s3.region", Message: "region is required when a bucket is set"})
		}
		if (c.Publish.S3.AccessKeyID == "") != (c.Publish.S3.SecretAccessKey == "") {
			errs = append(errs, ValidationError{
				Field:   "publish.s3.access_key_id",
				Message: "access_key_id and secret_access_key must be set together",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
