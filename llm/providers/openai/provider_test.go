package openai

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestOpenAI_DefaultEndpointAndCost(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "api.openai.com", r.URL.Host)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		h := make(http.Header)
		h.Set("Content-Type", "application/json")
		return &http.Response{
			StatusCode: http.StatusOK,
			Body: io.NopCloser(strings.NewReader(`{"id":"c1","model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"stop",
				"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":1000000,"completion_tokens":1000000}}`)),
			Header:  h,
			Request: r,
		}, nil
	})}

	p, err := New("sk-test", WithHTTPClient(httpClient), WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, llm.Capabilities{Tools: true, JSONMode: true}, p.Capabilities())

	req, err := p.BuildRequest(llm.CallInput{Messages: []schema.Message{schema.UserMessage("hi")}})
	require.NoError(t, err)
	resp, err := p.Create(context.Background(), llm.Dispatch{Model: "gpt-4o-mini", Request: req})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content())

	cost := p.Cost("gpt-4o-mini", resp.Usage())
	require.NotNil(t, cost)
	assert.InDelta(t, 0.75, *cost, 1e-9)
}
