package litellm

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

func TestLiteLLM_LocalProxyWithoutPrices(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "localhost:4000", r.URL.Host)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		h := make(http.Header)
		h.Set("Content-Type", "application/json")
		return &http.Response{
			StatusCode: http.StatusOK,
			Body: io.NopCloser(strings.NewReader(`{"id":"x","model":"claude-3-haiku","choices":[{"index":0,"finish_reason":"stop",
				"message":{"role":"assistant","content":"ok"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`)),
			Header:  h,
			Request: r,
		}, nil
	})}

	p, err := New("", WithHTTPClient(httpClient), WithMaxRetries(0))
	require.NoError(t, err)

	req, err := p.BuildRequest(llm.CallInput{Messages: []schema.Message{schema.UserMessage("hi")}})
	require.NoError(t, err)
	resp, err := p.Create(context.Background(), llm.Dispatch{Model: "claude-3-haiku", Request: req})
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Content())
	assert.Nil(t, p.Cost("claude-3-haiku", resp.Usage()))
}
