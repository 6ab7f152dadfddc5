package mistral

import "github.com/skylarbpayne/mirascope/llm/providers/openai_compat"

const DefaultBaseURL = "https://api.mistral.ai/v1/"

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

// New returns a Mistral provider.
//
// Mistral spells the tool choice "any" instead of "required"; "auto" is
// shared, so only an explicit "required" is rewritten.
func New(apiKey string, opts ...Option) (*openai_compat.Provider, error) {
	return openai_compat.New(apiKey, append([]openai_compat.Option{
		openai_compat.WithProviderName("mistral"),
		openai_compat.WithBaseURL(DefaultBaseURL),
		openai_compat.WithHooks(openai_compat.Hooks{
			PatchRequest: func(extra map[string]any) {
				if extra["tool_choice"] == "required" {
					extra["tool_choice"] = "any"
				}
			},
		}),
	}, opts...)...)
}
