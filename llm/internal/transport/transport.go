// Package transport is the HTTP client shared by the hand-rolled provider
// adapters. It performs exactly one attempt per request; retry policy belongs
// to the caller.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/skylarbpayne/mirascope/version"
)

// DefaultResponseHeaderTimeout 默认客户端等待响应头的时间
const DefaultResponseHeaderTimeout = 120 * time.Second

// Config 传输层配置
type Config struct {
	// Provider 用于错误与日志中标识来源
	Provider string
	BaseURL  string

	// HTTPClient 为空时使用不设总超时的默认客户端，流式响应体的读取只受 ctx 约束
	HTTPClient *http.Client

	// ResponseHeaderTimeout 仅作用于默认客户端：等待响应头的上限，为 0 时取 DefaultResponseHeaderTimeout
	ResponseHeaderTimeout time.Duration

	DefaultHeaders http.Header
	UserAgent      string
	Logger         *slog.Logger
}

// Client 发送 JSON 请求并返回响应体或流式响应
type Client struct {
	provider   string
	httpClient *http.Client
	baseURL    *url.URL
	headers    http.Header
	userAgent  string
	logger     *slog.Logger
}

// New 创建传输层客户端
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", cfg.Provider, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", cfg.Provider, cfg.BaseURL)
	}

	c := &Client{
		provider:   cfg.Provider,
		httpClient: cfg.HTTPClient,
		baseURL:    u,
		headers:    cfg.DefaultHeaders.Clone(),
		userAgent:  cfg.UserAgent,
		logger:     cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = defaultHTTPClient(cfg.ResponseHeaderTimeout)
	}
	if c.headers == nil {
		c.headers = make(http.Header)
	}
	if c.userAgent == "" {
		c.userAgent = version.Get().UserAgent()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

func defaultHTTPClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = DefaultResponseHeaderTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: tr}
}

// Provider 返回 provider 名称
func (c *Client) Provider() string { return c.provider }

// Resolve 把相对路径拼接到 BaseURL 上，path 可带查询串
func (c *Client) Resolve(path string) string {
	rel, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + path
	}
	u := *c.baseURL
	u.Path = joinPath(u.Path, rel.Path)
	if rel.RawQuery != "" {
		q := u.Query()
		for k, vs := range rel.Query() {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func joinPath(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case a[len(a)-1] == '/' && b[0] == '/':
		return a + b[1:]
	case a[len(a)-1] == '/' || b[0] == '/':
		return a + b
	default:
		return a + "/" + b
	}
}

// PostJSON 发送 JSON 请求并返回 2xx 响应体，非 2xx 时返回 *llm.APIError
func (c *Client) PostJSON(ctx context.Context, path string, hdr http.Header, body any) ([]byte, error) {
	resp, err := c.do(ctx, path, hdr, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.provider, err)
	}
	return raw, nil
}

// PostStream 发送 JSON 请求并返回流式响应体，由调用方关闭
func (c *Client) PostStream(ctx context.Context, path string, hdr http.Header, body any) (io.ReadCloser, error) {
	resp, err := c.do(ctx, path, hdr, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, path string, hdr http.Header, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}

	urlStr := c.Resolve(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.provider, err)
	}
	mergeHeaders(req.Header, c.headers)
	mergeHeaders(req.Header, hdr)
	req.Header.Set("Content-Type", "application/json")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("llm http request failed", "provider", c.provider, "url", req.URL.Path, "err", err)
		return nil, err
	}
	c.logger.Debug("llm http request", "provider", c.provider, "url", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return nil, newAPIError(c.provider, resp.StatusCode, resp.Header, raw)
}

func mergeHeaders(dst, src http.Header) {
	for k, vs := range src {
		dst.Del(k)
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
