// Package httpagent implements a Stage Agent backed by an external HTTP generator.
package httpagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/casegate/pkg/log"
	"github.com/dukex/casegate/pkg/models"
	"github.com/dukex/casegate/pkg/protocol"
)

// ID is the agent type name used in the agents configuration.
const ID = "http"

const (
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 4 << 20
)

var (
	// ErrURLInvalid is returned when the configured endpoint is missing or malformed.
	ErrURLInvalid = errors.New("invalid generator URL")
	// ErrStageRequired is returned when the configuration names no stage.
	ErrStageRequired = errors.New("http agent requires a stage")
)

// Agent posts generation requests to URL and validates the JSON reply.
type Agent struct {
	Stage   models.Stage
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// Schema overrides the built-in response schema of the stage.
	Schema map[string]any

	client *http.Client
	logger *slog.Logger
}

type response struct {
	Content  string         `json:"content"`
	Data     map[string]any `json:"data"`
	Metadata struct {
		Model string         `json:"model"`
		Extra map[string]any `json:"extra"`
	} `json:"metadata"`
}

// NewAgent creates an agent from configuration.
func NewAgent(config map[string]any) (*Agent, error) {
	stage, _ := config["stage"].(string)
	if stage == "" {
		return nil, ErrStageRequired
	}

	rawURL, _ := config["url"].(string)

	parsed, err := url.Parse(rawURL)
	if rawURL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrURLInvalid, rawURL)
	}

	headers := make(map[string]string)

	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersConfig {
			if strVal, ok := v.(string); ok {
				headers[k] = strVal
			}
		}
	}

	timeout := defaultTimeout

	if raw, ok := config["timeout"].(string); ok && raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", raw, err)
		}
	}

	schema, _ := config["schema"].(map[string]any)

	return &Agent{
		Stage:   models.Stage(stage),
		URL:     rawURL,
		Headers: headers,
		Timeout: timeout,
		Schema:  schema,
		client:  &http.Client{Timeout: timeout},
		logger:  log.WithModule("http_agent").With("stage", stage),
	}, nil
}

// Generate posts req and maps every transport, status or schema problem to a Failure.
func (a *Agent) Generate(ctx context.Context, req protocol.GenerationRequest) protocol.Result {
	body, err := json.Marshal(req)
	if err != nil {
		return protocol.Failed("failed to encode generation request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return protocol.Failed("failed to create generation request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	for key, value := range a.Headers {
		httpReq.Header.Set(key, value)
	}

	a.logger.DebugContext(ctx, "Calling generator", "url", a.URL, "case_id", req.CaseID)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return protocol.Failed("generator request failed", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return protocol.Failed("failed to read generator response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return protocol.Failed(fmt.Sprintf("generator returned status %d: %s", resp.StatusCode, snippet(raw)), nil)
	}

	var document map[string]any
	if err := json.Unmarshal(raw, &document); err != nil {
		return protocol.Failed("generator returned malformed JSON", err)
	}

	schema := a.Schema
	if schema == nil {
		schema = ResponseSchema(a.Stage)
	}

	if err := validateJSONSchema(document, schema); err != nil {
		return protocol.Failed("generator response rejected", err)
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return protocol.Failed("generator returned malformed JSON", err)
	}

	a.logger.InfoContext(ctx, "Generator replied", "case_id", req.CaseID, "content_length", len(decoded.Content))

	return protocol.Success{
		Content: decoded.Content,
		Data:    decoded.Data,
		Metadata: models.GenerationMetadata{
			Generator: ID,
			Model:     decoded.Metadata.Model,
			Extra:     decoded.Metadata.Extra,
		},
	}
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		return s[:200] + "..."
	}

	return s
}

// Factory creates HTTP agents.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.StageAgent, error) {
	return NewAgent(config)
}

func (f *Factory) ID() string {
	return ID
}
