// Package openai_compat implements llm.Provider on top of the official
// openai-go SDK. OpenAI itself, Azure OpenAI and every vendor exposing an
// OpenAI-compatible chat completions endpoint share this code path.
package openai_compat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/pricing"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

type Option func(*Provider) error

// Provider 是基于 openai-go 的 llm.Provider 实现
type Provider struct {
	name string
	caps llm.Capabilities

	opts   []option.RequestOption
	client openai.Client
	prices *pricing.Table
	// pricingKey 为空时使用 name 查价
	pricingKey string

	hooks  Hooks
	logger *slog.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New 创建 provider；apiKey 为空时由 openai-go 从 OPENAI_API_KEY 读取
func New(apiKey string, opts ...Option) (*Provider, error) {
	p := &Provider{
		name:   "openai",
		caps:   llm.Capabilities{Tools: true, JSONMode: true},
		prices: pricing.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		// 重试由调用方决定
		opts: []option.RequestOption{option.WithMaxRetries(0)},
	}
	if apiKey != "" {
		p.opts = append(p.opts, option.WithAPIKey(apiKey))
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.name == "" {
		return nil, errors.New("openai_compat: empty provider name")
	}

	p.client = openai.NewClient(p.opts...)
	return p, nil
}

func WithProviderName(name string) Option {
	return func(p *Provider) error {
		p.name = name
		return nil
	}
}

func WithBaseURL(baseURL string) Option {
	return func(p *Provider) error {
		if baseURL == "" {
			return errors.New("openai_compat: empty base url")
		}
		p.opts = append(p.opts, option.WithBaseURL(baseURL))
		return nil
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) error {
		if c != nil {
			p.opts = append(p.opts, option.WithHTTPClient(c))
		}
		return nil
	}
}

func WithDefaultHeader(key, value string) Option {
	return func(p *Provider) error {
		p.opts = append(p.opts, option.WithHeader(key, value))
		return nil
	}
}

// WithMaxRetries 设置 SDK 的重试次数，0 表示不重试
func WithMaxRetries(n int) Option {
	return func(p *Provider) error {
		p.opts = append(p.opts, option.WithMaxRetries(n))
		return nil
	}
}

// WithRequestOptions 追加任意 openai-go 请求选项，例如 azure.WithEndpoint
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(p *Provider) error {
		p.opts = append(p.opts, opts...)
		return nil
	}
}

func WithCapabilities(caps llm.Capabilities) Option {
	return func(p *Provider) error {
		p.caps = caps
		return nil
	}
}

// WithPricing 替换查价表；pricingKey 为空时按 provider 名称查价
func WithPricing(table *pricing.Table, pricingKey string) Option {
	return func(p *Provider) error {
		p.prices = table
		p.pricingKey = pricingKey
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

func (p *Provider) Name() string                   { return p.name }
func (p *Provider) Capabilities() llm.Capabilities { return p.caps }

// Client 返回默认的 SDK 客户端
func (p *Provider) Client() openai.Client { return p.client }

func (p *Provider) Create(ctx context.Context, d llm.Dispatch) (llm.Response, error) {
	client, req, err := p.prepare(d)
	if err != nil {
		return nil, err
	}

	params := req.Params
	params.Model = d.Model
	completion, err := client.Chat.Completions.New(ctx, params, req.requestOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%s: create chat completion: %w", p.name, err)
	}
	if len(completion.Choices) == 0 {
		p.logger.Warn("chat completion without choices", "provider", p.name, "id", completion.ID)
	}
	return &Response{completion: completion}, nil
}

func (p *Provider) Stream(ctx context.Context, d llm.Dispatch) (llm.ChunkReader, error) {
	client, req, err := p.prepare(d)
	if err != nil {
		return nil, err
	}

	params := req.Params
	params.Model = d.Model
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := client.Chat.Completions.NewStreaming(ctx, params, req.requestOptions()...)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%s: open chat completion stream: %w", p.name, err)
	}
	return &chunkReader{stream: stream}, nil
}

func (p *Provider) MessageParam(content string, calls []schema.ToolCall) any {
	return assistantParam(content, calls)
}

func (p *Provider) Cost(model string, usage *schema.Usage) *float64 {
	if usage == nil || p.prices == nil {
		return nil
	}
	key := p.pricingKey
	if key == "" {
		key = p.name
	}
	return p.prices.Cost(key, model, usage.InputTokens, usage.OutputTokens)
}

func (p *Provider) prepare(d llm.Dispatch) (openai.Client, *Request, error) {
	req, ok := d.Request.(*Request)
	if !ok || req == nil {
		return openai.Client{}, nil, fmt.Errorf("%s: unexpected request type %T", p.name, d.Request)
	}
	if d.Model == "" {
		return openai.Client{}, nil, &llm.ConfigurationError{Reason: p.name + ": model is required"}
	}

	switch c := d.Client.(type) {
	case nil:
		return p.client, req, nil
	case openai.Client:
		return c, req, nil
	case *openai.Client:
		if c == nil {
			return p.client, req, nil
		}
		return *c, req, nil
	default:
		return openai.Client{}, nil, &llm.ConfigurationError{
			Reason: fmt.Sprintf("%s: client override must be openai.Client, got %T", p.name, d.Client),
		}
	}
}
