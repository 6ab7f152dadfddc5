package litellm

import "github.com/skylarbpayne/mirascope/llm/providers/openai_compat"

// DefaultBaseURL 是本地 LiteLLM 代理的默认地址
const DefaultBaseURL = "http://localhost:4000/"

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

// New returns a LiteLLM proxy provider.
//
// The proxy routes to arbitrary upstream models, so there is no built-in
// price list; Cost reports nil unless WithPricing supplies one under
// "litellm". apiKey may be empty for an unauthenticated local proxy.
func New(apiKey string, opts ...Option) (*openai_compat.Provider, error) {
	if apiKey == "" {
		apiKey = "litellm"
	}
	return openai_compat.New(apiKey, append([]openai_compat.Option{
		openai_compat.WithProviderName("litellm"),
		openai_compat.WithBaseURL(DefaultBaseURL),
	}, opts...)...)
}
