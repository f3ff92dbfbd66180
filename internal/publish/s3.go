// Package publish uploads generated reports to external storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/akrishnanDG/unit-orchestrator/internal/report"
	"github.com/akrishnanDG/unit-orchestrator/pkg/config"
)

// ObjectPutter is the subset of the S3 client used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Upload is the outcome of publishing one report
type Upload struct {
	Format models.ReportFormat
	Key    string
	Err    error
}

// S3Publisher copies report files into a bucket
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3 creates a publisher from configuration, resolving credentials the
// same way the AWS CLI does unless static keys or a profile are given.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	} else if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3WithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3WithClient creates a publisher around an existing client
func NewS3WithClient(client ObjectPutter, bucket, prefix string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a report file
func (p *S3Publisher) Key(file string) string {
	return path.Join(p.prefix, filepath.Base(file))
}

// Publish uploads every successfully generated report. Reports that failed
// to generate are skipped. Each upload succeeds or fails on its own.
func (p *S3Publisher) Publish(ctx context.Context, results []report.Result) []Upload {
	var uploads []Upload
	for _, r := range results {
		if !r.OK() {
			continue
		}

		key := p.Key(r.Path)
		err := p.put(ctx, key, r.Path, r.Format)
		if err != nil {
			slog.Error("Failed to publish report", "format", r.Format, "bucket", p.bucket, "key", key, "error", err)
		} else {
			slog.Info("Published report", "format", r.Format, "bucket", p.bucket, "key", key)
		}
		uploads = append(uploads, Upload{Format: r.Format, Key: key, Err: err})
	}
	return uploads
}

func (p *S3Publisher) put(ctx context.Context, key, file string, format models.ReportFormat) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(format)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("s3 put %s: %s: %s", key, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func contentType(format models.ReportFormat) string {
	switch format {
	case models.ReportJSON:
		return "application/json"
	case models.ReportCSV:
		return "text/csv"
	case models.ReportHTML:
		return "text/html; charset=utf-8"
	case models.ReportMarkdown:
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
