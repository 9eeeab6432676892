package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kbukum/intentflow/dag"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/logger"
)

// Request is the JSON body sent to the service.
type Request struct {
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	Type        dag.IntentType `json:"type"`
	Attempt     int            `json:"attempt"`
	Parameters  map[string]any `json:"parameters"`
}

// Handler calls one webhook endpoint.
type Handler struct {
	cfg     Config
	client  *http.Client
	service string
}

var _ dag.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithHTTPClient replaces the default client. Config.TLS is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) { h.client = c }
}

// New creates a handler for the endpoint in cfg.
func New(cfg Config, opts ...Option) (*Handler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Handler{cfg: cfg}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		tlsCfg, err := cfg.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("webhook: %w", err)
		}
		if tlsCfg != nil {
			transport.TLSClientConfig = tlsCfg
		}
		h.client = &http.Client{Transport: transport}
	}
	h.service = "webhook " + cfg.URL
	return h, nil
}

// Register binds a webhook handler per configured intent type.
func Register(reg *dag.Registry, bindings map[dag.IntentType]Config, opts ...Option) error {
	for t, cfg := range bindings {
		h, err := New(cfg, opts...)
		if err != nil {
			return fmt.Errorf("intent type %s: %w", t, err)
		}
		reg.Register(t, h)
	}
	return nil
}

// Execute implements dag.Handler.
func (h *Handler) Execute(ctx context.Context, params map[string]any) (any, error) {
	call, _ := dag.CallFromContext(ctx)
	body, err := json.Marshal(Request{
		ExecutionID: call.ExecutionID,
		NodeID:      call.NodeID,
		Type:        call.Type,
		Attempt:     call.Attempt,
		Parameters:  params,
	})
	if err != nil {
		return nil, apperrors.InvalidInput("parameters", err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	h.setHeaders(req, call)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, callCtx, h.service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxResponseBytes))
	if err != nil {
		return nil, classifyTransport(ctx, callCtx, h.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(h.service, resp.StatusCode, data)
	}
	return decodeResult(data)
}

func (h *Handler) setHeaders(req *http.Request, call dag.Call) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}
	if call.ExecutionID != "" {
		req.Header.Set("X-Execution-Id", call.ExecutionID)
		req.Header.Set("Idempotency-Key", call.IdempotencyKey())
	}
	if rid := logger.RequestIDFromContext(req.Context()); rid != "" {
		req.Header.Set("X-Request-Id", rid)
	}
	if h.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.BearerToken)
	}
	if h.cfg.APIKey != "" {
		req.Header.Set(h.cfg.APIKeyHeader, h.cfg.APIKey)
	}
}

// decodeResult parses a JSON body. An empty body is a nil result; a body
// that is not JSON is returned as a string.
func decodeResult(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data), nil
	}
	return v, nil
}
