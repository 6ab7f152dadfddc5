// Package cohere implements llm.Provider for the Cohere v1 chat API.
package cohere

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
	DefaultBaseURL = "https://api.cohere.com"
	chatPath       = "/v1/chat"
)

type Option func(*config)

type config struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	prices     *pricing.Table
}

func WithBaseURL(baseURL string) Option { return func(c *config) { c.baseURL = baseURL } }

func WithHTTPClient(hc *http.Client) Option { return func(c *config) { c.httpClient = hc } }

func WithLogger(logger *slog.Logger) Option { return func(c *config) { c.logger = logger } }

func WithPricing(table *pricing.Table) Option { return func(c *config) { c.prices = table } }

type Client struct {
	tr     *transport.Client
	prices *pricing.Table
}

var _ llm.Provider = (*Client)(nil)

func New(apiKey string, opts ...Option) (*Client, error) {
	cfg := &config{baseURL: DefaultBaseURL, prices: pricing.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	tr, err := transport.New(transport.Config{
		Provider:       "cohere",
		BaseURL:        cfg.baseURL,
		HTTPClient:     cfg.httpClient,
		DefaultHeaders: http.Header{"Authorization": {"Bearer " + apiKey}},
		Logger:         cfg.logger,
	})
	if err != nil {
		return nil, err
	}
	return &Client{tr: tr, prices: cfg.prices}, nil
}

func (c *Client) Name() string { return "cohere" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true, JSONMode: true}
}

func (c *Client) Create(ctx context.Context, d llm.Dispatch) (llm.Response, error) {
	client, body, err := c.prepare(d, false)
	if err != nil {
		return nil, err
	}
	raw, err := client.tr.PostJSON(ctx, chatPath, nil, body)
	if err != nil {
		return nil, err
	}
	var cr ChatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("cohere: decode response: %w", err)
	}
	return newResponse(cr), nil
}

func (c *Client) Stream(ctx context.Context, d llm.Dispatch) (llm.ChunkReader, error) {
	client, body, err := c.prepare(d, true)
	if err != nil {
		return nil, err
	}
	rc, err := client.tr.PostStream(ctx, chatPath, nil, body)
	if err != nil {
		return nil, err
	}
	return &chunkReader{body: rc, dec: transport.NewLineDecoder(rc)}, nil
}

func (c *Client) MessageParam(content string, calls []schema.ToolCall) any {
	return chatbotMessage(content, calls)
}

func (c *Client) Cost(model string, usage *schema.Usage) *float64 {
	if usage == nil || c.prices == nil {
		return nil
	}
	return c.prices.Cost("cohere", model, usage.InputTokens, usage.OutputTokens)
}

func (c *Client) prepare(d llm.Dispatch, stream bool) (*Client, json.RawMessage, error) {
	req, ok := d.Request.(*Request)
	if !ok || req == nil {
		return nil, nil, fmt.Errorf("cohere: unexpected request type %T", d.Request)
	}
	if d.Model == "" {
		return nil, nil, &llm.ConfigurationError{Reason: "cohere: model is required"}
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
			Reason: fmt.Sprintf("cohere: client override must be *cohere.Client, got %T", d.Client),
		}
	}

	r := *req
	r.Model = d.Model
	r.Stream = stream
	body, err := r.JSON()
	if err != nil {
		return nil, nil, fmt.Errorf("cohere: marshal request: %w", err)
	}
	return client, body, nil
}
