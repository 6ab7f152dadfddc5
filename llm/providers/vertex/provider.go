// Package vertex serves Gemini models through Vertex AI. It reuses the gemini
// wire format and only changes the endpoint and authentication.
package vertex

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/skylarbpayne/mirascope/llm/providers/gemini"
)

type Option = gemini.Option

var (
	WithHTTPClient = gemini.WithHTTPClient
	WithLogger     = gemini.WithLogger
	WithPricing    = gemini.WithPricing
	WithBaseURL    = gemini.WithBaseURL
)

// Config 描述一个 Vertex AI 项目
type Config struct {
	Project  string
	Location string
	// AccessToken 是 OAuth2 访问令牌，例如 gcloud auth print-access-token 的输出
	AccessToken string
}

// New returns a Vertex AI provider named "vertex".
func New(cfg Config, opts ...Option) (*gemini.Client, error) {
	if cfg.Project == "" {
		return nil, errors.New("vertex: project is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}

	prefix := fmt.Sprintf("/v1/projects/%s/locations/%s/publishers/google/models/",
		url.PathEscape(cfg.Project), url.PathEscape(cfg.Location))
	hdr := make(http.Header)
	if cfg.AccessToken != "" {
		hdr.Set("Authorization", "Bearer "+cfg.AccessToken)
	}

	return gemini.NewEndpoint(gemini.Endpoint{
		Provider: "vertex",
		BaseURL:  "https://" + cfg.Location + "-aiplatform.googleapis.com",
		Headers:  hdr,
		Path: func(model string, stream bool) string {
			if stream {
				return prefix + url.PathEscape(model) + ":streamGenerateContent?alt=sse"
			}
			return prefix + url.PathEscape(model) + ":generateContent"
		},
	}, opts...)
}
