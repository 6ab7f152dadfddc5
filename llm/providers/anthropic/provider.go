// Package anthropic implements llm.Provider for the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/internal/transport"
	"github.com/skylarbpayne/mirascope/llm/pricing"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"
	DefaultMaxTokens  = 1024
	messagesPath      = "/v1/messages"
)

type Option func(*config)

type config struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
	headers    http.Header
	logger     *slog.Logger
	prices     *pricing.Table
}

func WithBaseURL(baseURL string) Option { return func(c *config) { c.baseURL = baseURL } }

func WithAPIVersion(v string) Option { return func(c *config) { c.apiVersion = v } }

func WithHTTPClient(hc *http.Client) Option { return func(c *config) { c.httpClient = hc } }

// WithBetaHeader 追加 anthropic-beta 头
func WithBetaHeader(feature string) Option {
	return func(c *config) { c.headers.Add("anthropic-beta", feature) }
}

func WithLogger(logger *slog.Logger) Option { return func(c *config) { c.logger = logger } }

func WithPricing(table *pricing.Table) Option { return func(c *config) { c.prices = table } }

// Client 是 Anthropic 的 llm.Provider 实现，也可作为单次调用的客户端覆盖
type Client struct {
	tr     *transport.Client
	prices *pricing.Table
}

var _ llm.Provider = (*Client)(nil)

func New(apiKey string, opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		headers:    make(http.Header),
		prices:     pricing.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	cfg.headers.Set("x-api-key", apiKey)
	cfg.headers.Set("anthropic-version", cfg.apiVersion)

	tr, err := transport.New(transport.Config{
		Provider:       "anthropic",
		BaseURL:        cfg.baseURL,
		HTTPClient:     cfg.httpClient,
		DefaultHeaders: cfg.headers,
		Logger:         cfg.logger,
	})
	if err != nil {
		return nil, err
	}
	return &Client{tr: tr, prices: cfg.prices}, nil
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true, JSONMode: false}
}

func (c *Client) Create(ctx context.Context, d llm.Dispatch) (llm.Response, error) {
	client, body, err := c.prepare(d, false)
	if err != nil {
		return nil, err
	}
	raw, err := client.tr.PostJSON(ctx, messagesPath, nil, body)
	if err != nil {
		return nil, err
	}
	var msg MessageResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	return &Response{msg: msg}, nil
}

func (c *Client) Stream(ctx context.Context, d llm.Dispatch) (llm.ChunkReader, error) {
	client, body, err := c.prepare(d, true)
	if err != nil {
		return nil, err
	}
	rc, err := client.tr.PostStream(ctx, messagesPath, http.Header{"Accept": {"text/event-stream"}}, body)
	if err != nil {
		return nil, err
	}
	return newChunkReader(rc), nil
}

func (c *Client) MessageParam(content string, calls []schema.ToolCall) any {
	return assistantMessage(content, calls)
}

func (c *Client) Cost(model string, usage *schema.Usage) *float64 {
	if usage == nil || c.prices == nil {
		return nil
	}
	return c.prices.Cost("anthropic", model, usage.InputTokens, usage.OutputTokens)
}

func (c *Client) prepare(d llm.Dispatch, stream bool) (*Client, json.RawMessage, error) {
	req, ok := d.Request.(*Request)
	if !ok || req == nil {
		return nil, nil, fmt.Errorf("anthropic: unexpected request type %T", d.Request)
	}
	if d.Model == "" {
		return nil, nil, &llm.ConfigurationError{Reason: "anthropic: model is required"}
	}

	client := c
	switch o := d.Client.(type) {
	case nil:
	case *Client:
		if o != nil {
			client = o
		}
	default:
		return nil, nil, &llm.ConfigurationError{
			Reason: fmt.Sprintf("anthropic: client override must be *anthropic.Client, got %T", d.Client),
		}
	}

	r := *req
	r.Model = d.Model
	r.Stream = stream
	body, err := r.JSON()
	if err != nil {
		return nil, nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	return client, body, nil
}
