package cohere

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/internal/transport"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// chunkReader 读取换行分隔的 JSON 事件
type chunkReader struct {
	body io.ReadCloser
	dec  *transport.LineDecoder

	generationID string
	seq          int
}

func (r *chunkReader) Close() error { return r.body.Close() }

func (r *chunkReader) Recv() (llm.Chunk, error) {
	for {
		line, err := r.dec.Next()
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(line) {
			return nil, fmt.Errorf("cohere: malformed stream event %q", line)
		}
		ev := gjson.ParseBytes(line)
		c := &Chunk{event: ev.Get("event_type").String(), raw: string(line), id: r.generationID}

		switch c.event {
		case "stream-start":
			r.generationID = ev.Get("generation_id").String()
			c.id = r.generationID
		case "text-generation":
			c.content = ev.Get("text").String()
		case "tool-calls-generation":
			var calls []Call
			if err := json.Unmarshal([]byte(ev.Get("tool_calls").Raw), &calls); err != nil {
				return nil, fmt.Errorf("cohere: decode tool calls: %w", err)
			}
			for _, tc := range toolCalls(calls) {
				c.deltas = append(c.deltas, llm.ToolCallDelta{
					Index:     r.seq,
					ID:        tc.ID,
					Name:      tc.Name,
					Arguments: tc.Arguments,
					Done:      true,
				})
				r.seq++
			}
		case "stream-end":
			if reason := ev.Get("finish_reason").String(); reason != "" {
				c.finish = []string{reason}
			}
			var meta Meta
			if m := ev.Get("response.meta"); m.Exists() {
				if err := json.Unmarshal([]byte(m.Raw), &meta); err == nil {
					c.usage = meta.usage()
				}
			}
		default:
			// tool-calls-chunk 等增量事件由 tool-calls-generation 汇总
			continue
		}
		return c, nil
	}
}

type Chunk struct {
	id      string
	event   string
	raw     string
	content string
	finish  []string
	usage   *schema.Usage
	deltas  []llm.ToolCallDelta
}

var _ llm.Chunk = (*Chunk)(nil)

func (c *Chunk) ID() string                          { return c.id }
func (c *Chunk) Model() string                       { return "" }
func (c *Chunk) Content() string                     { return c.content }
func (c *Chunk) FinishReasons() []string             { return c.finish }
func (c *Chunk) Usage() *schema.Usage                { return c.usage }
func (c *Chunk) ToolCallDeltas() []llm.ToolCallDelta { return c.deltas }
func (c *Chunk) Raw() any                            { return c.raw }

// Event 返回事件类型，如 text-generation
func (c *Chunk) Event() string { return c.event }
