package llm

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// fakeProvider 记录每次请求，并按脚本返回响应或 chunk 序列
type fakeProvider struct {
	mu sync.Mutex

	caps   Capabilities
	resp   *fakeResponse
	chunks []Chunk
	err    error

	inputs     []CallInput
	dispatches []Dispatch
	readers    []*sliceReader
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{caps: Capabilities{Tools: true, JSONMode: true}}
}

func (p *fakeProvider) Name() string               { return "fake" }
func (p *fakeProvider) Capabilities() Capabilities { return p.caps }

type fakeRequest struct {
	in CallInput
}

func (r *fakeRequest) JSON() ([]byte, error) { return json.Marshal(r.in.Messages) }

func (p *fakeProvider) BuildRequest(in CallInput) (Request, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, in)
	return &fakeRequest{in: in}, nil
}

func (p *fakeProvider) Create(_ context.Context, d Dispatch) (Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatches = append(p.dispatches, d)
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

func (p *fakeProvider) Stream(_ context.Context, d Dispatch) (ChunkReader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatches = append(p.dispatches, d)
	if p.err != nil {
		return nil, p.err
	}
	r := &sliceReader{chunks: append([]Chunk(nil), p.chunks...)}
	p.readers = append(p.readers, r)
	return r, nil
}

type fakeMessageParam struct {
	Role      string
	Content   string
	ToolCalls []schema.ToolCall
}

func (p *fakeProvider) MessageParam(content string, calls []schema.ToolCall) any {
	return fakeMessageParam{Role: "assistant", Content: content, ToolCalls: calls}
}

// Cost 每 token 0.001 美元
func (p *fakeProvider) Cost(_ string, usage *schema.Usage) *float64 {
	if usage == nil {
		return nil
	}
	c := float64(usage.Total()) * 0.001
	return &c
}

func (p *fakeProvider) lastInput() CallInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputs[len(p.inputs)-1]
}

type fakeResponse struct {
	id      string
	model   string
	content string
	finish  []string
	usage   *schema.Usage
	calls   []schema.ToolCall
}

func (r *fakeResponse) ID() string                      { return r.id }
func (r *fakeResponse) Model() string                   { return r.model }
func (r *fakeResponse) Content() string                 { return r.content }
func (r *fakeResponse) FinishReasons() []string         { return r.finish }
func (r *fakeResponse) Usage() *schema.Usage            { return r.usage }
func (r *fakeResponse) RawToolCalls() []schema.ToolCall { return r.calls }
func (r *fakeResponse) Raw() any                        { return r }

func (r *fakeResponse) MessageParam() any {
	return fakeMessageParam{Role: "assistant", Content: r.content, ToolCalls: r.calls}
}

type fakeChunk struct {
	content string
	finish  []string
	usage   *schema.Usage
	deltas  []ToolCallDelta
	model   string
}

func (c *fakeChunk) ID() string                      { return "chunk" }
func (c *fakeChunk) Model() string                   { return c.model }
func (c *fakeChunk) Content() string                 { return c.content }
func (c *fakeChunk) FinishReasons() []string         { return c.finish }
func (c *fakeChunk) Usage() *schema.Usage            { return c.usage }
func (c *fakeChunk) ToolCallDeltas() []ToolCallDelta { return c.deltas }
func (c *fakeChunk) Raw() any                        { return c }

func textChunk(s string) Chunk { return &fakeChunk{content: s} }

func toolChunk(deltas ...ToolCallDelta) Chunk { return &fakeChunk{deltas: deltas} }

func finishChunk(reason string) Chunk { return &fakeChunk{finish: []string{reason}} }

// sliceReader 依次返回预置的 chunk
type sliceReader struct {
	chunks []Chunk
	closed bool
	err    error
}

func (r *sliceReader) Recv() (Chunk, error) {
	if r.closed {
		return nil, ErrStreamClosed
	}
	if len(r.chunks) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return c, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}
