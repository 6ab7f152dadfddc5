package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/skylarbpayne/mirascope/config"
	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/pricing"
	"github.com/skylarbpayne/mirascope/llm/providers/anthropic"
	"github.com/skylarbpayne/mirascope/llm/providers/azure"
	"github.com/skylarbpayne/mirascope/llm/providers/cohere"
	"github.com/skylarbpayne/mirascope/llm/providers/gemini"
	"github.com/skylarbpayne/mirascope/llm/providers/groq"
	"github.com/skylarbpayne/mirascope/llm/providers/litellm"
	"github.com/skylarbpayne/mirascope/llm/providers/mistral"
	"github.com/skylarbpayne/mirascope/llm/providers/openai"
	"github.com/skylarbpayne/mirascope/llm/providers/vertex"
)

type providerFactory func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error)

type providerEntry struct {
	build        providerFactory
	defaultModel string
	// keyEnv 配置中没有 api_key 时读取的环境变量
	keyEnv string
}

var providers = map[string]providerEntry{
	"openai": {
		defaultModel: "gpt-4o-mini",
		keyEnv:       "OPENAI_API_KEY",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			opts := []openai.Option{openai.WithLogger(logger), openai.WithPricing(prices, "")}
			if ps.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(ps.BaseURL))
			}
			return asProvider(openai.New(ps.APIKey, opts...))
		},
	},
	"azure": {
		keyEnv: "AZURE_OPENAI_API_KEY",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			endpoint := ps.Endpoint
			if endpoint == "" {
				endpoint = ps.BaseURL
			}
			return asProvider(azure.New(azure.Config{Endpoint: endpoint, APIKey: ps.APIKey, APIVersion: ps.APIVersion},
				azure.WithLogger(logger), azure.WithPricing(prices, "")))
		},
	},
	"groq": {
		defaultModel: "llama-3.1-8b-instant",
		keyEnv:       "GROQ_API_KEY",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			opts := []groq.Option{groq.WithLogger(logger), groq.WithPricing(prices, "")}
			if ps.BaseURL != "" {
				opts = append(opts, groq.WithBaseURL(ps.BaseURL))
			}
			return asProvider(groq.New(ps.APIKey, opts...))
		},
	},
	"mistral": {
		defaultModel: "mistral-small-latest",
		keyEnv:       "MISTRAL_API_KEY",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			opts := []mistral.Option{mistral.WithLogger(logger), mistral.WithPricing(prices, "")}
			if ps.BaseURL != "" {
				opts = append(opts, mistral.WithBaseURL(ps.BaseURL))
			}
			return asProvider(mistral.New(ps.APIKey, opts...))
		},
	},
	"litellm": {
		defaultModel: "gpt-4o-mini",
		keyEnv:       "LITELLM_API_KEY",
		build: func(ps config.ProviderSettings, _ *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			opts := []litellm.Option{litellm.WithLogger(logger)}
			if ps.BaseURL != "" {
				opts = append(opts, litellm.WithBaseURL(ps.BaseURL))
			}
			return asProvider(litellm.New(ps.APIKey, opts...))
		},
	},
	"anthropic": {
		defaultModel: "claude-3-5-haiku-20241022",
		keyEnv:       "ANTHROPIC_API_KEY",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			opts := []anthropic.Option{anthropic.WithLogger(logger), anthropic.WithPricing(prices)}
			if ps.BaseURL != "" {
				opts = append(opts, anthropic.WithBaseURL(ps.BaseURL))
			}
			if ps.APIVersion != "" {
				opts = append(opts, anthropic.WithAPIVersion(ps.APIVersion))
			}
			return asProvider(anthropic.New(ps.APIKey, opts...))
		},
	},
	"gemini": {
		defaultModel: "gemini-1.5-flash",
		keyEnv:       "GOOGLE_API_KEY",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			opts := []gemini.Option{gemini.WithLogger(logger), gemini.WithPricing(prices)}
			if ps.BaseURL != "" {
				opts = append(opts, gemini.WithBaseURL(ps.BaseURL))
			}
			return asProvider(gemini.New(ps.APIKey, opts...))
		},
	},
	"vertex": {
		defaultModel: "gemini-1.5-flash",
		keyEnv:       "VERTEX_ACCESS_TOKEN",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			token := ps.AccessToken
			if token == "" {
				token = ps.APIKey
			}
			opts := []vertex.Option{vertex.WithLogger(logger), vertex.WithPricing(prices)}
			if ps.BaseURL != "" {
				opts = append(opts, vertex.WithBaseURL(ps.BaseURL))
			}
			return asProvider(vertex.New(vertex.Config{Project: ps.Project, Location: ps.Location, AccessToken: token}, opts...))
		},
	},
	"cohere": {
		defaultModel: "command-r",
		keyEnv:       "CO_API_KEY",
		build: func(ps config.ProviderSettings, prices *pricing.Table, logger *slog.Logger) (llm.Provider, error) {
			opts := []cohere.Option{cohere.WithLogger(logger), cohere.WithPricing(prices)}
			if ps.BaseURL != "" {
				opts = append(opts, cohere.WithBaseURL(ps.BaseURL))
			}
			return asProvider(cohere.New(ps.APIKey, opts...))
		},
	},
}

func asProvider[P llm.Provider](p P, err error) (llm.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// providerNames 返回支持的 provider，按名称排序
func providerNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// target 是一次调用要发往的 provider 与模型
type target struct {
	name     string
	model    string
	provider llm.Provider
}

// resolveTarget 按配置构造 provider；model 为空时依次取配置与内置默认值
func resolveTarget(settings config.Settings, name, model string, prices *pricing.Table, logger *slog.Logger) (target, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	entry, ok := providers[name]
	if !ok {
		return target{}, fmt.Errorf("unknown provider %q (supported: %s)", name, strings.Join(providerNames(), ", "))
	}

	ps, _ := settings.Provider(name)
	if ps.APIKey == "" && entry.keyEnv != "" {
		ps.APIKey = os.Getenv(entry.keyEnv)
	}
	if model == "" {
		model = ps.Model
	}
	if model == "" {
		model = entry.defaultModel
	}
	if model == "" {
		return target{}, fmt.Errorf("%s: no model configured, pass --model or set providers.%s.model", name, name)
	}

	p, err := entry.build(ps, prices, logger.With("provider", name))
	if err != nil {
		return target{}, err
	}
	return target{name: name, model: model, provider: p}, nil
}
