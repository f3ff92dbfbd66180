package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/akrishnanDG/unit-orchestrator/pkg/config"
)

const contentType = "application/json"

// HTTPProcessor sends each unit to a remote processing service
type HTTPProcessor struct {
	config   config.ProcessorConfig
	client   *http.Client
	endpoint string
}

// NewHTTP creates a processor that POSTs units to cfg.URL
func NewHTTP(cfg config.ProcessorConfig) (*HTTPProcessor, error) {
	endpoint := strings.TrimSuffix(cfg.URL, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("processor url is required")
	}

	return &HTTPProcessor{
		config:   cfg,
		client:   &http.Client{},
		endpoint: endpoint,
	}, nil
}

// processRequest is the body sent for every unit
type processRequest struct {
	Unit              models.MigrationUnit `json:"unit"`
	DryRun            bool                 `json:"dry_run"`
	OutputDirectory   string               `json:"output_directory"`
	BaselineDirectory string               `json:"baseline_directory,omitempty"`
}

// processResponse is the body expected back
type processResponse struct {
	Success  bool                   `json:"success"`
	Errors   []string               `json:"errors,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Metadata *models.RecordMetadata `json:"metadata,omitempty"`
	Source   string                 `json:"source,omitempty"`
	Target   string                 `json:"target,omitempty"`
}

// Process implements UnitProcessor
func (p *HTTPProcessor) Process(ctx context.Context, unit models.MigrationUnit, cfg models.RunConfig) (Result, error) {
	if cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.UnitTimeout)
		defer cancel()
	}

	body, err := json.Marshal(processRequest{
		Unit:              unit,
		DryRun:            cfg.DryRun,
		OutputDirectory:   cfg.OutputDirectory,
		BaselineDirectory: cfg.BaselineDirectory,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/units/process", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to process unit %s: %w", unit.ID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("processing failed for unit '%s': %s (status %d)", unit.ID, strings.TrimSpace(string(respBody)), resp.StatusCode)
	}

	var decoded processResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Result{}, fmt.Errorf("failed to decode response for unit %s: %w", unit.ID, err)
	}

	result := Result{
		Success:  decoded.Success,
		Errors:   decoded.Errors,
		Warnings: decoded.Warnings,
		Metadata: decoded.Metadata,
	}
	if decoded.Source != "" || decoded.Target != "" {
		result.Payload = &models.Payload{Source: decoded.Source, Target: decoded.Target}
		if result.Metadata == nil {
			result.Metadata = &models.RecordMetadata{}
		}
		if result.Metadata.SourceBytes == nil {
			n := int64(len(decoded.Source))
			result.Metadata.SourceBytes = &n
		}
		if result.Metadata.TargetBytes == nil {
			n := int64(len(decoded.Target))
			result.Metadata.TargetBytes = &n
		}
	}
	if !result.Success && len(result.Errors) == 0 {
		result.Errors = []string{"processor reported failure"}
	}
	return result, nil
}

func (p *HTTPProcessor) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	switch {
	case p.config.Token != "":
		req.Header.Set("Authorization", "Bearer "+p.config.Token)
	case p.config.Username != "":
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}
}
