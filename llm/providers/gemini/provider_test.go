package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

type book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New("g-key", WithBaseURL(srv.URL+"/v1beta"))
	require.NoError(t, err)
	return c
}

func TestBuildRequest(t *testing.T) {
	c, err := New("k")
	require.NoError(t, err)
	tool, err := llm.FuncTool[book]("format_book", "Format a book.", func(context.Context, book) (string, error) { return "", nil })
	require.NoError(t, err)

	req, err := c.BuildRequest(llm.CallInput{
		Messages: []schema.Message{
			schema.SystemMessage("be nice"),
			schema.UserMessage("recommend"),
			schema.AssistantToolCallMessage("", schema.ToolCall{ID: "x", Name: "format_book", Arguments: `{"title":"Dune","author":"Herbert"}`}),
			schema.ToolResultMessage("x", "format_book", "Dune by Herbert"),
		},
		Tools:    []llm.ToolSpec{tool},
		Params:   llm.CallParams{"temperature": 0.4, "safetySettings": []any{"BLOCK_NONE"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	body, err := req.JSON()
	require.NoError(t, err)
	doc := gjson.ParseBytes(body)

	assert.Equal(t, "be nice", doc.Get("systemInstruction.parts.0.text").String())
	assert.Equal(t, 0.4, doc.Get("generationConfig.temperature").Float())
	assert.Equal(t, "application/json", doc.Get("generationConfig.responseMimeType").String())
	assert.Equal(t, "BLOCK_NONE", doc.Get("safetySettings.0").String())
	assert.Equal(t, "AUTO", doc.Get("toolConfig.functionCallingConfig.mode").String())

	params := doc.Get("tools.0.functionDeclarations.0.parameters")
	assert.Equal(t, "format_book", doc.Get("tools.0.functionDeclarations.0.name").String())
	assert.False(t, params.Get("additionalProperties").Exists())
	assert.False(t, params.Get("title").Exists())
	// a property named title survives
	assert.Equal(t, "string", params.Get("properties.title.type").String())

	contents := doc.Get("contents").Array()
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].Get("role").String())
	assert.Equal(t, "Dune", contents[1].Get("parts.0.functionCall.args.title").String())
	assert.Equal(t, "format_book", contents[2].Get("parts.0.functionResponse.name").String())
	assert.Equal(t, "Dune by Herbert", contents[2].Get("parts.0.functionResponse.response.result").String())
}

func TestCreate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("X-Goog-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Here:"},
			{"functionCall":{"name":"format_book","args":{"title":"Dune","author":"Herbert"}}}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":1000,"candidatesTokenCount":1000},"modelVersion":"gemini-1.5-flash-002"}`)
	})

	req, err := c.BuildRequest(llm.CallInput{Messages: []schema.Message{schema.UserMessage("hi")}})
	require.NoError(t, err)
	resp, err := c.Create(context.Background(), llm.Dispatch{Model: "gemini-1.5-flash", Request: req})
	require.NoError(t, err)

	assert.Equal(t, "Here:", resp.Content())
	assert.Equal(t, "gemini-1.5-flash-002", resp.Model())
	assert.Equal(t, []string{"STOP"}, resp.FinishReasons())

	calls := resp.RawToolCalls()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
	assert.Equal(t, calls, resp.RawToolCalls(), "ids are generated once")
	assert.JSONEq(t, `{"title":"Dune","author":"Herbert"}`, calls[0].Arguments)

	mp, ok := resp.MessageParam().(Content)
	require.True(t, ok)
	assert.Equal(t, "model", mp.Role)
	assert.Len(t, mp.Parts, 2)

	cost := c.Cost("gemini-1.5-flash", resp.Usage())
	require.NotNil(t, cost)
	assert.InDelta(t, 0.000375, *cost, 1e-12)
}

func TestStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"lo"},{"functionCall":{"name":"a","args":{}}},{"functionCall":{"name":"b","args":{"x":1}}}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":7}}`+"\n\n")
	})

	req, err := c.BuildRequest(llm.CallInput{Messages: []schema.Message{schema.UserMessage("hi")}, Stream: true})
	require.NoError(t, err)
	reader, err := c.Stream(context.Background(), llm.Dispatch{Model: "gemini-1.5-flash", Request: req})
	require.NoError(t, err)
	defer reader.Close()

	first, err := reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hel", first.Content())
	assert.Empty(t, first.ToolCallDeltas())

	second, err := reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, "lo", second.Content())
	deltas := second.ToolCallDeltas()
	require.Len(t, deltas, 2)
	assert.Equal(t, 0, deltas[0].Index)
	assert.Equal(t, 1, deltas[1].Index)
	assert.True(t, deltas[0].Done && deltas[1].Done)
	assert.NotEqual(t, deltas[0].ID, deltas[1].ID)
	assert.Equal(t, &schema.Usage{InputTokens: 5, OutputTokens: 7}, second.Usage())

	_, err = reader.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
