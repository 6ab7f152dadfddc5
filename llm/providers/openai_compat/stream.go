package openai_compat

import (
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

type chunkReader struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (r *chunkReader) Recv() (llm.Chunk, error) {
	if !r.stream.Next() {
		if err := r.stream.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	chunk := r.stream.Current()
	return &Chunk{chunk: &chunk}, nil
}

func (r *chunkReader) Close() error { return r.stream.Close() }

// Chunk 包装 openai.ChatCompletionChunk
type Chunk struct {
	chunk *openai.ChatCompletionChunk
}

var _ llm.Chunk = (*Chunk)(nil)

func (c *Chunk) ID() string    { return c.chunk.ID }
func (c *Chunk) Model() string { return c.chunk.Model }
func (c *Chunk) Raw() any      { return c.chunk }

func (c *Chunk) Content() string {
	if len(c.chunk.Choices) == 0 {
		return ""
	}
	return c.chunk.Choices[0].Delta.Content
}

func (c *Chunk) FinishReasons() []string {
	var out []string
	for _, choice := range c.chunk.Choices {
		if choice.FinishReason != "" {
			out = append(out, string(choice.FinishReason))
		}
	}
	return out
}

// Usage 只有开启 include_usage 后的最后一个块才携带
func (c *Chunk) Usage() *schema.Usage {
	return usage(c.chunk.Usage)
}

func (c *Chunk) ToolCallDeltas() []llm.ToolCallDelta {
	if len(c.chunk.Choices) == 0 {
		return nil
	}
	calls := c.chunk.Choices[0].Delta.ToolCalls
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCallDelta, 0, len(calls))
	for _, tc := range calls {
		out = append(out, llm.ToolCallDelta{
			Index:     int(tc.Index),
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
