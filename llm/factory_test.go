package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

type genreArgs struct {
	Genre string `json:"genre"`
}

type bookQuery struct {
	Title string `json:"title"`
}

func TestResolveMode(t *testing.T) {
	parser := func(*CallResponse) (any, error) { return nil, nil }
	model := ResponseModelOf[Book]()

	cases := []struct {
		name    string
		opts    []CallOption
		want    Mode
		wantErr bool
	}{
		{name: "call", want: ModeCall},
		{name: "parsed", opts: []CallOption{WithOutputParser(parser)}, want: ModeParsedCall},
		{name: "stream", opts: []CallOption{WithStream()}, want: ModeStream},
		{name: "extract", opts: []CallOption{WithResponseModel(model)}, want: ModeExtract},
		{name: "structured stream", opts: []CallOption{WithResponseModel(model), WithStream()}, want: ModeStructuredStream},
		{name: "stream with parser", opts: []CallOption{WithStream(), WithOutputParser(parser)}, wantErr: true},
		{name: "model with parser", opts: []CallOption{WithResponseModel(model), WithOutputParser(parser)}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveMode(ApplyCallOptions(tc.opts...))
			if tc.wantErr {
				assert.True(t, IsConfigurationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeclare_ConfigurationErrorsBeforeAnyRequest(t *testing.T) {
	p := newFakeProvider()
	noTools := newFakeProvider()
	noTools.caps = Capabilities{}

	_, err := Call[genreArgs](nil, "m", nil, WithPrompt("hi"))
	assert.True(t, IsConfigurationError(err), "nil provider")

	_, err = Call[genreArgs](p, " ", nil, WithPrompt("hi"))
	assert.True(t, IsConfigurationError(err), "empty model")

	_, err = Call[genreArgs](p, "m", nil)
	assert.True(t, IsConfigurationError(err), "no prompt")

	_, err = Decorate[genreArgs](p, "m", nil, WithPrompt("hi"), WithStream(), WithOutputParser(func(*CallResponse) (any, error) { return nil, nil }))
	assert.True(t, IsConfigurationError(err), "stream with parser")

	_, err = Call[genreArgs](p, "m", nil, WithPrompt("hi"), WithStream())
	assert.True(t, IsConfigurationError(err), "Call with stream option")

	_, err = Extract[genreArgs, Book](noTools, "m", nil, WithPrompt("hi"))
	assert.True(t, IsConfigurationError(err), "provider without structured output")

	_, err = CallWithParser[genreArgs, string](p, "m", nil, nil, WithPrompt("hi"))
	assert.True(t, IsConfigurationError(err), "nil parser")

	assert.Empty(t, p.inputs)
	assert.Empty(t, p.dispatches)
}

func TestCall_RecommendBook(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{id: "r1", content: "The Name of the Wind", finish: []string{"stop"}, usage: &schema.Usage{InputTokens: 10, OutputTokens: 5}}

	recommend, err := Call[genreArgs](p, "gpt-4o-mini", nil,
		WithPrompt("Recommend a {genre} book"),
		WithCallParams(CallParams{"temperature": 0.5}),
		WithTags("books"),
	)
	require.NoError(t, err)

	resp, err := recommend(context.Background(), genreArgs{Genre: "fantasy"})
	require.NoError(t, err)

	in := p.lastInput()
	require.Len(t, in.Messages, 1)
	assert.Equal(t, schema.UserMessage("Recommend a fantasy book"), in.Messages[0])
	assert.Equal(t, CallParams{"temperature": 0.5}, in.Params)
	assert.Equal(t, "gpt-4o-mini", p.dispatches[0].Model)

	assert.Equal(t, "The Name of the Wind", resp.Content())
	assert.Equal(t, fakeMessageParam{Role: "assistant", Content: "The Name of the Wind"}, resp.MessageParam())
	assert.Equal(t, schema.AssistantMessage("The Name of the Wind"), resp.Message())
	assert.Equal(t, "gpt-4o-mini", resp.Model(), "falls back to the requested model")
	require.NotNil(t, resp.Cost())
	assert.InDelta(t, 0.015, *resp.Cost(), 1e-9)
	require.NotNil(t, resp.UserMessageParam())
	assert.Equal(t, "Recommend a fantasy book", resp.UserMessageParam().Text())
	assert.Equal(t, "Recommend a {genre} book", resp.Prompt())
	assert.True(t, resp.Metadata().HasTag("books"))
}

func TestCall_DynamicConfigOverridesDeclaration(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{content: "ok"}
	override := struct{ name string }{"override-client"}

	fn := func(_ context.Context, a genreArgs) (Prompt, error) {
		return &DynamicConfig{
			CallParams:     CallParams{"temperature": 0.9},
			Metadata:       NewMetadata("dynamic"),
			Client:         override,
			ComputedFields: map[string]any{"genre": "sci-fi"},
		}, nil
	}
	call, err := Call(p, "m", fn,
		WithPrompt("SYSTEM: You are a librarian.\nUSER: Recommend a {genre} book"),
		WithCallParams(CallParams{"temperature": 0.1, "max_tokens": 50}),
		WithTags("static"),
	)
	require.NoError(t, err)

	resp, err := call(context.Background(), genreArgs{Genre: "fantasy"})
	require.NoError(t, err)

	in := p.lastInput()
	require.Len(t, in.Messages, 2)
	assert.Equal(t, schema.RoleSystem, in.Messages[0].Role)
	assert.Equal(t, "Recommend a sci-fi book", in.Messages[1].Text())
	assert.Equal(t, CallParams{"temperature": 0.9, "max_tokens": 50}, in.Params)
	assert.Equal(t, override, p.dispatches[0].Client)
	assert.Equal(t, []string{"dynamic", "static"}, resp.Metadata().Tags)
}

func TestCall_ExplicitMessages(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{content: "ok"}

	call, err := Call(p, "m", func(_ context.Context, q string) (Prompt, error) {
		return Messages{schema.SystemMessage("be brief"), schema.UserMessage(q)}, nil
	})
	require.NoError(t, err)

	_, err = call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, p.lastInput().Messages, 2)
}

func TestCall_PromptFuncErrorAndInvalidMessages(t *testing.T) {
	p := newFakeProvider()
	boom := errors.New("boom")

	call, err := Call(p, "m", func(context.Context, string) (Prompt, error) { return nil, boom })
	require.NoError(t, err)
	_, err = call(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	call, err = Call(p, "m", func(context.Context, string) (Prompt, error) {
		return Messages{{Role: "robot", Content: []schema.ContentPart{schema.TextPart("x")}}}, nil
	})
	require.NoError(t, err)
	_, err = call(context.Background(), "x")
	assert.ErrorIs(t, err, schema.ErrInvalidRole)

	call, err = Call(p, "m", func(context.Context, string) (Prompt, error) { return nil, nil })
	require.NoError(t, err)
	_, err = call(context.Background(), "x")
	assert.True(t, IsConfigurationError(err))
	assert.Empty(t, p.dispatches)
}

func TestCall_ToolCalls(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{
		content: "",
		finish:  []string{"tool_calls"},
		calls: []schema.ToolCall{
			{ID: "c1", Name: "find_book", Arguments: `{"title":"Dune"}`},
			{ID: "c2", Name: "not_declared", Arguments: `{}`},
		},
	}
	tool, err := FuncTool("find_book", "Find a book by title.", func(_ context.Context, q bookQuery) (string, error) {
		return "found " + q.Title, nil
	})
	require.NoError(t, err)

	call, err := Call(p, "m", func(_ context.Context, q string) (Prompt, error) {
		return Messages{schema.UserMessage("find " + q)}, nil
	}, WithTools(tool))
	require.NoError(t, err)

	resp, err := call(context.Background(), "dune")
	require.NoError(t, err)
	require.Len(t, p.lastInput().Tools, 1)

	tools, err := resp.ToolCalls()
	require.NoError(t, err)
	require.Len(t, tools, 1, "undeclared tool calls are ignored")
	assert.Equal(t, "c1", tools[0].ID())

	args, ok := ToolArgs[bookQuery](tools[0])
	require.True(t, ok)
	assert.Equal(t, "Dune", args.Title)

	out, err := tools[0].Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "found Dune", out)
	assert.Equal(t, schema.ToolResultMessage("c1", "find_book", "found Dune"), tools[0].ResultMessage(out))

	first, err := resp.Tool()
	require.NoError(t, err)
	assert.Equal(t, tools[0].ID(), first.ID())
	assert.Equal(t, schema.AssistantToolCallMessage("", p.resp.calls...), resp.Message())
}

func TestCall_ToolArgumentError(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{calls: []schema.ToolCall{{ID: "c1", Name: "find_book", Arguments: `{"title":`}}}
	tool, err := FuncTool("find_book", "Find a book.", func(context.Context, bookQuery) (string, error) { return "", nil })
	require.NoError(t, err)

	call, err := Call[string](p, "m", nil, WithPrompt("find it"), WithTools(tool))
	require.NoError(t, err)
	resp, err := call(context.Background(), "")
	require.NoError(t, err)

	_, err = resp.ToolCalls()
	var tae *ToolArgumentError
	require.ErrorAs(t, err, &tae)
	assert.Equal(t, "find_book", tae.Tool)
	assert.Equal(t, "c1", tae.ID)
}

func TestCall_DuplicateToolNames(t *testing.T) {
	p := newFakeProvider()
	a, err := FuncTool("dup", "A.", func(context.Context, bookQuery) (string, error) { return "", nil })
	require.NoError(t, err)
	b, err := FuncTool("dup", "B.", func(context.Context, genreArgs) (string, error) { return "", nil })
	require.NoError(t, err)

	call, err := Call[string](p, "m", nil, WithPrompt("x"), WithTools(a, b))
	require.NoError(t, err)
	_, err = call(context.Background(), "")
	assert.True(t, IsConfigurationError(err))
	assert.Empty(t, p.dispatches)
}

func TestCallWithParser(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{content: "Dune, Hyperion , Foundation"}

	list, err := CallWithParser[genreArgs](p, "m", nil, func(r *CallResponse) ([]string, error) {
		var out []string
		for _, s := range strings.Split(r.Content(), ",") {
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	}, WithPrompt("List {genre} books"))
	require.NoError(t, err)

	books, err := list(context.Background(), genreArgs{Genre: "sci-fi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Hyperion", "Foundation"}, books)
}

func TestCallFunc_Async(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{content: "async"}

	call, err := Call[genreArgs](p, "m", nil, WithPrompt("Recommend a {genre} book"))
	require.NoError(t, err)

	res := <-call.Async(context.Background(), genreArgs{Genre: "horror"})
	require.NoError(t, res.Err)
	assert.Equal(t, "async", res.Value.Content())

	p.err = errors.New("unavailable")
	res = <-call.Async(context.Background(), genreArgs{Genre: "horror"})
	assert.EqualError(t, res.Err, "unavailable")
}

func TestDecorate_PicksModeFromOptions(t *testing.T) {
	p := newFakeProvider()
	p.resp = &fakeResponse{content: "plain", calls: []schema.ToolCall{{ID: "x", Name: "Book", Arguments: `{"title":"Dune","author":"Frank Herbert"}`}}}
	p.chunks = []Chunk{textChunk("a"), textChunk("b")}

	plain, err := Decorate[genreArgs](p, "m", nil, WithPrompt("{genre}"))
	require.NoError(t, err)
	v, err := plain(context.Background(), genreArgs{Genre: "x"})
	require.NoError(t, err)
	assert.IsType(t, &CallResponse{}, v)

	streamed, err := Decorate[genreArgs](p, "m", nil, WithPrompt("{genre}"), WithStream())
	require.NoError(t, err)
	v, err = streamed(context.Background(), genreArgs{Genre: "x"})
	require.NoError(t, err)
	require.IsType(t, &Stream{}, v)
	assert.True(t, p.lastInput().Stream)

	extract, err := Decorate[genreArgs](p, "m", nil, WithPrompt("{genre}"), WithResponseModel(ResponseModelOf[Book]()))
	require.NoError(t, err)
	v, err = extract(context.Background(), genreArgs{Genre: "x"})
	require.NoError(t, err)
	book, ok := v.(Book)
	require.True(t, ok)
	assert.Equal(t, "Frank Herbert", book.Author)
}
