package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylarbpayne/mirascope/config"
	"github.com/skylarbpayne/mirascope/llm/pricing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveTarget_EveryProviderBuilds(t *testing.T) {
	settings := config.Settings{Providers: map[string]config.ProviderSettings{
		"azure":  {APIKey: "k", Endpoint: "https://example.openai.azure.com", Model: "my-deployment"},
		"vertex": {AccessToken: "tok", Project: "proj", Location: "us-central1"},
	}}

	for _, name := range providerNames() {
		t.Run(name, func(t *testing.T) {
			tg, err := resolveTarget(settings, name, "", pricing.Default(), discardLogger())
			require.NoError(t, err)
			assert.Equal(t, name, tg.name)
			assert.NotEmpty(t, tg.model)
			require.NotNil(t, tg.provider)
			assert.Equal(t, name, tg.provider.Name())
		})
	}
}

func TestResolveTarget_ModelPrecedence(t *testing.T) {
	settings := config.Settings{Providers: map[string]config.ProviderSettings{
		"groq": {APIKey: "k", Model: "llama-3.3-70b-versatile"},
	}}
	prices := pricing.Default()

	tg, err := resolveTarget(settings, "GROQ", "", prices, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "groq", tg.name)
	assert.Equal(t, "llama-3.3-70b-versatile", tg.model)

	tg, err = resolveTarget(settings, "groq", "mixtral-8x7b-32768", prices, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "mixtral-8x7b-32768", tg.model)

	tg, err = resolveTarget(config.Settings{}, "cohere", "", prices, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "command-r", tg.model)
}

func TestResolveTarget_Errors(t *testing.T) {
	prices := pricing.Default()

	_, err := resolveTarget(config.Settings{}, "palm", "", prices, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "palm"`)
	assert.Contains(t, err.Error(), "anthropic, azure, cohere")

	_, err = resolveTarget(config.Settings{}, "azure", "", prices, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model configured")

	_, err = resolveTarget(config.Settings{}, "azure", "deployment", prices, discardLogger())
	assert.Error(t, err, "azure needs an endpoint")
}
