package anthropic

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/internal/transport"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// chunkReader 把 SSE 事件映射为 llm.Chunk
//
// message_start 中的 id/model/input_tokens 会被记住，并附加到之后的每个块上
type chunkReader struct {
	body io.ReadCloser
	dec  *transport.SSEDecoder

	id          string
	model       string
	inputTokens int
	toolBlocks  map[int]bool
}

func newChunkReader(body io.ReadCloser) *chunkReader {
	return &chunkReader{
		body:       body,
		dec:        transport.NewSSEDecoder(body),
		toolBlocks: make(map[int]bool),
	}
}

func (r *chunkReader) Close() error { return r.body.Close() }

func (r *chunkReader) Recv() (llm.Chunk, error) {
	for {
		ev, err := r.dec.Next()
		if err != nil {
			return nil, err
		}
		data := gjson.Parse(ev.Data)
		typ := data.Get("type").String()
		if typ == "" {
			typ = ev.Name
		}

		c := &Chunk{id: r.id, model: r.model, event: typ, raw: ev.Data}
		switch typ {
		case "message_start":
			msg := data.Get("message")
			r.id = msg.Get("id").String()
			r.model = msg.Get("model").String()
			r.inputTokens = int(msg.Get("usage.input_tokens").Int())
			c.id, c.model = r.id, r.model

		case "content_block_start":
			idx := int(data.Get("index").Int())
			blk := data.Get("content_block")
			switch blk.Get("type").String() {
			case "tool_use":
				r.toolBlocks[idx] = true
				c.deltas = []llm.ToolCallDelta{{
					Index: idx,
					ID:    blk.Get("id").String(),
					Name:  blk.Get("name").String(),
				}}
			case "text":
				c.content = blk.Get("text").String()
			}

		case "content_block_delta":
			idx := int(data.Get("index").Int())
			delta := data.Get("delta")
			switch delta.Get("type").String() {
			case "text_delta":
				c.content = delta.Get("text").String()
			case "input_json_delta":
				c.deltas = []llm.ToolCallDelta{{Index: idx, Arguments: delta.Get("partial_json").String()}}
			}

		case "content_block_stop":
			idx := int(data.Get("index").Int())
			if r.toolBlocks[idx] {
				delete(r.toolBlocks, idx)
				c.deltas = []llm.ToolCallDelta{{Index: idx, Done: true}}
			}

		case "message_delta":
			if reason := data.Get("delta.stop_reason").String(); reason != "" {
				c.finish = []string{reason}
			}
			if out := data.Get("usage.output_tokens"); out.Exists() {
				c.usage = &schema.Usage{InputTokens: r.inputTokens, OutputTokens: int(out.Int())}
			}

		case "error":
			return nil, &llm.APIError{
				Provider: "anthropic",
				Type:     data.Get("error.type").String(),
				Message:  data.Get("error.message").String(),
				Raw:      []byte(ev.Data),
			}

		case "message_stop":
			return nil, io.EOF

		case "ping":
			continue

		default:
			if !data.Exists() {
				return nil, fmt.Errorf("anthropic: malformed stream event %q", ev.Name)
			}
			continue
		}
		return c, nil
	}
}

// Chunk 是一个 SSE 事件对应的增量
type Chunk struct {
	id      string
	model   string
	event   string
	raw     string
	content string
	finish  []string
	usage   *schema.Usage
	deltas  []llm.ToolCallDelta
}

var _ llm.Chunk = (*Chunk)(nil)

func (c *Chunk) ID() string                          { return c.id }
func (c *Chunk) Model() string                       { return c.model }
func (c *Chunk) Content() string                     { return c.content }
func (c *Chunk) FinishReasons() []string             { return c.finish }
func (c *Chunk) Usage() *schema.Usage                { return c.usage }
func (c *Chunk) ToolCallDeltas() []llm.ToolCallDelta { return c.deltas }

// Event 返回 SSE 事件类型，如 content_block_delta
func (c *Chunk) Event() string { return c.event }

// Raw 返回事件的原始 JSON 文本
func (c *Chunk) Raw() any { return c.raw }
