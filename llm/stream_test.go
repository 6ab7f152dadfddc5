package llm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

type formatBook struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

func formatBookTool(t *testing.T) ToolSpec {
	t.Helper()
	tool, err := FuncTool("format_book", "Format a book.", func(_ context.Context, b formatBook) (string, error) {
		return b.Title + " by " + b.Author, nil
	})
	require.NoError(t, err)
	return tool
}

type pair struct {
	chunk *CallResponseChunk
	tool  *ToolInstance
}

func drain(t *testing.T, s *Stream) []pair {
	t.Helper()
	var out []pair
	for {
		c, tool, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, pair{c, tool})
	}
}

func streamFor(t *testing.T, p *fakeProvider, opts ...CallOption) *Stream {
	t.Helper()
	call, err := StreamCall[string](p, "m", nil, append([]CallOption{WithPrompt("recommend two books")}, opts...)...)
	require.NoError(t, err)
	s, err := call(context.Background(), "")
	require.NoError(t, err)
	return s
}

func TestStream_TextOnly(t *testing.T) {
	p := newFakeProvider()
	p.chunks = []Chunk{
		textChunk("The Name "),
		textChunk("of the Wind"),
		&fakeChunk{finish: []string{"stop"}, usage: &schema.Usage{InputTokens: 3, OutputTokens: 4}, model: "m-2024"},
	}
	s := streamFor(t, p)

	_, err := s.MessageParam()
	var ise *IncompleteStreamError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "message_param", ise.Field)

	pairs := drain(t, s)
	require.Len(t, pairs, 3)
	for _, pr := range pairs {
		assert.Nil(t, pr.tool)
	}
	assert.Equal(t, "of the Wind", pairs[1].chunk.Content())

	assert.True(t, s.Done())
	assert.Equal(t, "The Name of the Wind", s.Content())
	assert.Equal(t, "m-2024", s.Model())
	assert.Equal(t, []string{"stop"}, s.FinishReasons())
	assert.Equal(t, &schema.Usage{InputTokens: 3, OutputTokens: 4}, s.Usage())
	require.NotNil(t, s.Cost())
	assert.InDelta(t, 0.007, *s.Cost(), 1e-9)

	mp, err := s.MessageParam()
	require.NoError(t, err)
	assert.Equal(t, fakeMessageParam{Role: "assistant", Content: "The Name of the Wind"}, mp)
	msg, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, schema.AssistantMessage("The Name of the Wind"), msg)
	assert.True(t, p.readers[0].closed)
}

// 一个文本块加两个工具调用：第二个调用以新 ID 开始时完成第一个，结束原因完成第二个
func TestStream_ToolCallsPairedWithCompletingChunk(t *testing.T) {
	p := newFakeProvider()
	finish := finishChunk("tool_calls")
	p.chunks = []Chunk{
		textChunk("Here you go"),
		toolChunk(ToolCallDelta{Index: 0, ID: "a", Name: "format_book", Arguments: `{"title": "The Name`}),
		toolChunk(ToolCallDelta{Index: 0, Arguments: ` of the Wind", "author": "Patrick Rothfuss"}`}),
		toolChunk(ToolCallDelta{Index: 0, ID: "b", Name: "format_book", Arguments: `{"title": "Mistborn", `}),
		toolChunk(ToolCallDelta{Index: 0, Arguments: `"author": "Brandon Sanderson"}`}),
		finish,
	}
	s := streamFor(t, p, WithTools(formatBookTool(t)))
	pairs := drain(t, s)

	require.Len(t, pairs, 3)
	assert.Nil(t, pairs[0].tool)
	assert.Equal(t, "Here you go", pairs[0].chunk.Content())

	require.NotNil(t, pairs[1].tool)
	assert.Equal(t, "a", pairs[1].tool.ID())
	first, ok := ToolArgs[formatBook](pairs[1].tool)
	require.True(t, ok)
	assert.Equal(t, formatBook{Title: "The Name of the Wind", Author: "Patrick Rothfuss"}, first)

	require.NotNil(t, pairs[2].tool)
	assert.Same(t, finish, pairs[2].chunk.Chunk())
	second, ok := ToolArgs[formatBook](pairs[2].tool)
	require.True(t, ok)
	assert.Equal(t, "Brandon Sanderson", second.Author)

	mp, err := s.MessageParam()
	require.NoError(t, err)
	param := mp.(fakeMessageParam)
	assert.Equal(t, "Here you go", param.Content)
	require.Len(t, param.ToolCalls, 2)
	assert.Equal(t, `{"title": "Mistborn", "author": "Brandon Sanderson"}`, param.ToolCalls[1].Arguments)
	assert.Len(t, s.ToolCalls(), 2)
}

func TestStream_OneChunkCompletesSeveralTools(t *testing.T) {
	p := newFakeProvider()
	finish := finishChunk("tool_calls")
	p.chunks = []Chunk{
		toolChunk(
			ToolCallDelta{Index: 0, ID: "a", Name: "format_book", Arguments: `{"title":"A","author":"x"}`},
			ToolCallDelta{Index: 1, ID: "b", Name: "format_book", Arguments: `{"title":"B","author":"y"}`},
		),
		finish,
	}
	s := streamFor(t, p, WithTools(formatBookTool(t)))
	pairs := drain(t, s)

	require.Len(t, pairs, 2, "the fragment-only chunk is consumed without being yielded")
	assert.Same(t, pairs[0].chunk, pairs[1].chunk)
	assert.Equal(t, "a", pairs[0].tool.ID())
	assert.Equal(t, "b", pairs[1].tool.ID())
}

func TestStream_DoneDeltasAndUndeclaredTools(t *testing.T) {
	p := newFakeProvider()
	p.chunks = []Chunk{
		toolChunk(ToolCallDelta{Index: 0, ID: "x", Name: "unknown", Arguments: `{}`, Done: true}),
		toolChunk(ToolCallDelta{Index: 1, ID: "y", Name: "format_book", Arguments: `{"title":"T","author":"A"}`, Done: true}),
	}
	s := streamFor(t, p, WithTools(formatBookTool(t)))
	pairs := drain(t, s)

	require.Len(t, pairs, 1)
	assert.Equal(t, "y", pairs[0].tool.ID())
}

func TestStream_DropsIncompleteAndMalformedCalls(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	p := newFakeProvider()
	p.chunks = []Chunk{
		toolChunk(ToolCallDelta{Index: 0, ID: "bad", Name: "format_book", Arguments: `{"title": `, Done: true}),
		textChunk("partial"),
		toolChunk(ToolCallDelta{Index: 1, ID: "open", Name: "format_book", Arguments: `{"title":"never closed"`}),
	}
	s := streamFor(t, p, WithTools(formatBookTool(t)), WithLogger(logger))
	pairs := drain(t, s)

	require.Len(t, pairs, 1)
	assert.Equal(t, "partial", pairs[0].chunk.Content())
	assert.Empty(t, s.ToolCalls())
	assert.Contains(t, logs.String(), "id=bad")
	assert.Contains(t, logs.String(), "id=open")
}

func TestStream_ErrorAndClose(t *testing.T) {
	p := newFakeProvider()
	p.chunks = []Chunk{textChunk("a")}
	s := streamFor(t, p)
	p.readers[0].err = errors.New("connection reset")

	c, _, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a", c.Content())

	_, _, err = s.Recv()
	assert.EqualError(t, err, "connection reset")
	_, _, err = s.Recv()
	assert.EqualError(t, err, "connection reset")
	assert.False(t, s.Done())

	p.chunks = []Chunk{textChunk("a"), textChunk("b")}
	s2 := streamFor(t, p)
	require.NoError(t, s2.Close())
	_, _, err = s2.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed)
	_, err = s2.Message()
	var ise *IncompleteStreamError
	assert.ErrorAs(t, err, &ise)
}

func TestStream_Chan(t *testing.T) {
	p := newFakeProvider()
	p.chunks = []Chunk{textChunk("x"), textChunk("y"), textChunk("z")}
	s := streamFor(t, p)

	var got string
	for r := range s.Chan(context.Background()) {
		require.NoError(t, r.Err)
		got += r.Chunk.Content()
	}
	assert.Equal(t, "xyz", got)
	assert.True(t, s.Done())
}

// 在 Chan 读取期间从另一个 goroutine 读取累加器，配合 -race 使用
func TestStream_AccessorsDuringChan(t *testing.T) {
	p := newFakeProvider()
	for range 50 {
		p.chunks = append(p.chunks, textChunk("a"))
	}
	p.chunks = append(p.chunks, &fakeChunk{finish: []string{"stop"}, usage: &schema.Usage{InputTokens: 1, OutputTokens: 50}})
	s := streamFor(t, p)

	stop := make(chan struct{})
	polled := make(chan int)
	go func() {
		n := 0
		for {
			select {
			case <-stop:
				polled <- n
				return
			default:
			}
			_ = s.Content()
			_ = s.Cost()
			_ = s.Usage()
			_ = s.ToolCalls()
			_ = s.FinishReasons()
			_ = s.Done()
			n++
		}
	}()

	count := 0
	for r := range s.Chan(context.Background()) {
		require.NoError(t, r.Err)
		count++
	}
	close(stop)
	<-polled

	assert.Equal(t, 51, count)
	assert.Len(t, s.Content(), 50)
	assert.Equal(t, []string{"stop"}, s.FinishReasons())
	require.NotNil(t, s.Usage())
	assert.Equal(t, 50, s.Usage().OutputTokens)
}

func TestStream_IndependentAccumulators(t *testing.T) {
	p := newFakeProvider()
	p.chunks = []Chunk{textChunk("one")}
	call, err := StreamCall[string](p, "m", nil, WithPrompt("hi"))
	require.NoError(t, err)

	s1, err := call(context.Background(), "")
	require.NoError(t, err)
	s2, err := call(context.Background(), "")
	require.NoError(t, err)

	drain(t, s1)
	assert.Equal(t, "one", s1.Content())
	assert.Equal(t, "", s2.Content())
	drain(t, s2)
	assert.Equal(t, "one", s2.Content())
}
