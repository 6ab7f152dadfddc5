package openai

import "github.com/skylarbpayne/mirascope/llm/providers/openai_compat"

const DefaultBaseURL = "https://api.openai.com/v1/"

type Option = openai_compat.Option

var (
	WithBaseURL        = openai_compat.WithBaseURL
	WithHTTPClient     = openai_compat.WithHTTPClient
	WithLogger         = openai_compat.WithLogger
	WithMaxRetries     = openai_compat.WithMaxRetries
	WithDefaultHeader  = openai_compat.WithDefaultHeader
	WithDefaultParams  = openai_compat.WithDefaultParams
	WithHooks          = openai_compat.WithHooks
	WithPricing        = openai_compat.WithPricing
	WithRequestOptions = openai_compat.WithRequestOptions
)

// New returns an OpenAI provider using the Chat Completions endpoint.
func New(apiKey string, opts ...Option) (*openai_compat.Provider, error) {
	return openai_compat.New(apiKey, append([]openai_compat.Option{
		openai_compat.WithProviderName("openai"),
		openai_compat.WithBaseURL(DefaultBaseURL),
	}, opts...)...)
}
