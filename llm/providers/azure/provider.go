package azure

import (
	"errors"

	"github.com/openai/openai-go/azure"

	"github.com/skylarbpayne/mirascope/llm/providers/openai_compat"
)

const DefaultAPIVersion = "2024-06-01"

type Option = openai_compat.Option

var (
	WithHTTPClient    = openai_compat.WithHTTPClient
	WithLogger        = openai_compat.WithLogger
	WithMaxRetries    = openai_compat.WithMaxRetries
	WithDefaultHeader = openai_compat.WithDefaultHeader
	WithDefaultParams = openai_compat.WithDefaultParams
	WithHooks         = openai_compat.WithHooks
	WithPricing       = openai_compat.WithPricing
)

// Config 描述一个 Azure OpenAI 资源
type Config struct {
	// Endpoint 如 https://my-resource.openai.azure.com
	Endpoint   string
	APIKey     string
	APIVersion string
}

// New returns an Azure OpenAI provider. The model passed at call time is the
// deployment name.
func New(cfg Config, opts ...Option) (*openai_compat.Provider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure: endpoint is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	return openai_compat.New("", append([]openai_compat.Option{
		openai_compat.WithProviderName("azure"),
		openai_compat.WithRequestOptions(
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		),
	}, opts...)...)
}
