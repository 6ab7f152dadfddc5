// Package gemini implements llm.Provider for the Google Generative Language
// API. The same wire format serves Vertex AI, which plugs in its own
// Endpoint through NewEndpoint.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/internal/transport"
	"github.com/skylarbpayne/mirascope/llm/pricing"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Endpoint 描述请求发往何处：名称、根地址、固定请求头与按模型拼接路径的规则
type Endpoint struct {
	Provider string
	BaseURL  string
	Headers  http.Header
	Path     func(model string, stream bool) string
}

type Option func(*config)

type config struct {
	httpClient *http.Client
	logger     *slog.Logger
	prices     *pricing.Table
	baseURL    string
}

func WithHTTPClient(hc *http.Client) Option { return func(c *config) { c.httpClient = hc } }

func WithLogger(logger *slog.Logger) Option { return func(c *config) { c.logger = logger } }

func WithPricing(table *pricing.Table) Option { return func(c *config) { c.prices = table } }

// WithBaseURL 覆盖 Endpoint 的根地址，主要用于测试与代理
func WithBaseURL(baseURL string) Option { return func(c *config) { c.baseURL = baseURL } }

// Client 是 Gemini 线格式的 llm.Provider 实现
type Client struct {
	name   string
	path   func(model string, stream bool) string
	tr     *transport.Client
	prices *pricing.Table
}

var _ llm.Provider = (*Client)(nil)

// New 使用 API key 访问 Generative Language API
func New(apiKey string, opts ...Option) (*Client, error) {
	return NewEndpoint(Endpoint{
		Provider: "gemini",
		BaseURL:  DefaultBaseURL,
		Headers:  http.Header{"X-Goog-Api-Key": {apiKey}},
		Path:     modelPath,
	}, opts...)
}

func modelPath(model string, stream bool) string {
	if stream {
		return "/models/" + url.PathEscape(model) + ":streamGenerateContent?alt=sse"
	}
	return "/models/" + url.PathEscape(model) + ":generateContent"
}

// NewEndpoint 创建指向任意 Gemini 兼容端点的客户端
func NewEndpoint(ep Endpoint, opts ...Option) (*Client, error) {
	if ep.Provider == "" || ep.Path == nil {
		return nil, errors.New("gemini: endpoint needs a provider name and a path builder")
	}
	cfg := &config{prices: pricing.Default(), baseURL: ep.BaseURL}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	tr, err := transport.New(transport.Config{
		Provider:       ep.Provider,
		BaseURL:        cfg.baseURL,
		HTTPClient:     cfg.httpClient,
		DefaultHeaders: ep.Headers,
		Logger:         cfg.logger,
	})
	if err != nil {
		return nil, err
	}
	return &Client{name: ep.Provider, path: ep.Path, tr: tr, prices: cfg.prices}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true, JSONMode: true}
}

func (c *Client) Create(ctx context.Context, d llm.Dispatch) (llm.Response, error) {
	client, req, err := c.prepare(d)
	if err != nil {
		return nil, err
	}
	raw, err := client.tr.PostJSON(ctx, client.path(d.Model, false), nil, req)
	if err != nil {
		return nil, err
	}
	var gr GenerateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return newResponse(gr), nil
}

func (c *Client) Stream(ctx context.Context, d llm.Dispatch) (llm.ChunkReader, error) {
	client, req, err := c.prepare(d)
	if err != nil {
		return nil, err
	}
	rc, err := client.tr.PostStream(ctx, client.path(d.Model, true), nil, req)
	if err != nil {
		return nil, err
	}
	return &chunkReader{name: c.name, body: rc, dec: transport.NewSSEDecoder(rc)}, nil
}

func (c *Client) MessageParam(content string, calls []schema.ToolCall) any {
	return modelContent(content, calls)
}

func (c *Client) Cost(model string, usage *schema.Usage) *float64 {
	if usage == nil || c.prices == nil {
		return nil
	}
	return c.prices.Cost(c.name, model, usage.InputTokens, usage.OutputTokens)
}

func (c *Client) prepare(d llm.Dispatch) (*Client, *Request, error) {
	req, ok := d.Request.(*Request)
	if !ok || req == nil {
		return nil, nil, fmt.Errorf("%s: unexpected request type %T", c.name, d.Request)
	}
	if d.Model == "" {
		return nil, nil, &llm.ConfigurationError{Reason: c.name + ": model is required"}
	}
	switch o := d.Client.(type) {
	case nil:
		return c, req, nil
	case *Client:
		if o == nil {
			return c, req, nil
		}
		return o, req, nil
	default:
		return nil, nil, &llm.ConfigurationError{
			Reason: fmt.Sprintf("%s: client override must be *gemini.Client, got %T", c.name, d.Client),
		}
	}
}
