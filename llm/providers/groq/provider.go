package groq

import (
	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/providers/openai_compat"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1/"

type Option = openai_compat.Option

var (
	WithBaseURL       = openai_compat.WithBaseURL
	WithHTTPClient    = openai_compat.WithHTTPClient
	WithLogger        = openai_compat.WithLogger
	WithMaxRetries    = openai_compat.WithMaxRetries
	WithDefaultHeader = openai_compat.WithDefaultHeader
	WithDefaultParams = openai_compat.WithDefaultParams
	WithHooks         = openai_compat.WithHooks
	WithPricing       = openai_compat.WithPricing
)

// New returns a Groq provider.
//
// Groq rejects the n parameter above 1, so it is dropped before mapping.
func New(apiKey string, opts ...Option) (*openai_compat.Provider, error) {
	return openai_compat.New(apiKey, append([]openai_compat.Option{
		openai_compat.WithProviderName("groq"),
		openai_compat.WithBaseURL(DefaultBaseURL),
		openai_compat.WithHooks(openai_compat.Hooks{
			BeforeBuild: func(params llm.CallParams) { delete(params, "n") },
		}),
	}, opts...)...)
}
