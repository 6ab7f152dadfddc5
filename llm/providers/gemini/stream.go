package gemini

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/internal/transport"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

type chunkReader struct {
	name string
	body io.ReadCloser
	dec  *transport.SSEDecoder
	seq  int
}

func (r *chunkReader) Close() error { return r.body.Close() }

func (r *chunkReader) Recv() (llm.Chunk, error) {
	ev, err := r.dec.Next()
	if err != nil {
		return nil, err
	}
	var gr GenerateResponse
	if err := json.Unmarshal([]byte(ev.Data), &gr); err != nil {
		return nil, fmt.Errorf("%s: decode stream event: %w", r.name, err)
	}

	c := &Chunk{gr: gr}
	// 每个函数调用在一个事件内完整到达，直接标记为完成
	for _, tc := range functionCalls(gr) {
		c.deltas = append(c.deltas, llm.ToolCallDelta{
			Index:     r.seq,
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: tc.Arguments,
			Done:      true,
		})
		r.seq++
	}
	return c, nil
}

type Chunk struct {
	gr     GenerateResponse
	deltas []llm.ToolCallDelta
}

var _ llm.Chunk = (*Chunk)(nil)

func (c *Chunk) ID() string                          { return c.gr.ResponseID }
func (c *Chunk) Model() string                       { return c.gr.ModelVersion }
func (c *Chunk) Content() string                     { return candidateText(c.gr) }
func (c *Chunk) FinishReasons() []string             { return finishReasons(c.gr) }
func (c *Chunk) Usage() *schema.Usage                { return usage(c.gr.UsageMetadata) }
func (c *Chunk) ToolCallDeltas() []llm.ToolCallDelta { return c.deltas }
func (c *Chunk) Raw() any                            { return c.gr }
