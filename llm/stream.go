package llm

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// ErrStreamClosed 在流被提前关闭后继续读取时返回
var ErrStreamClosed = errors.New("llm: stream closed")

// Stream yields (chunk, tool) pairs in provider delivery order until io.EOF.
//
// A pair carries a tool only on the chunk that completed that tool call. The
// accumulators (Cost, Usage, MessageParam) belong to this stream alone;
// MessageParam and Message are available once Recv has returned io.EOF.
// The accessors may be called from another goroutine while Chan is reading;
// Recv itself must not be called concurrently.
type Stream struct {
	reader ChunkReader
	call   *callContext

	// mu 保护以下累加状态，读取底层 reader 时不持有
	mu sync.Mutex

	asm     toolCallAssembler
	totals  streamTotals
	calls   []schema.ToolCall
	tools   []*ToolInstance
	pending []streamPair

	done   bool
	closed bool
	err    error

	messageParam any
}

type streamPair struct {
	chunk *CallResponseChunk
	tool  *ToolInstance
}

func newStream(reader ChunkReader, call *callContext) *Stream {
	return &Stream{reader: reader, call: call}
}

// Recv 返回下一个 chunk 以及该 chunk 完成的工具调用（可能为 nil）
//
// 声明了工具时，只携带工具参数片段且未完成任何调用的 chunk 会被消费但不返回
func (s *Stream) Recv() (*CallResponseChunk, *ToolInstance, error) {
	for {
		if p, ok, err := s.next(); ok {
			return p.chunk, p.tool, err
		}

		raw, err := s.reader.Recv()
		if p, ok, err := s.apply(raw, err); ok {
			return p.chunk, p.tool, err
		}
	}
}

// next 返回待发送的配对或终止状态，ok 为 false 时需要继续读取
func (s *Stream) next() (streamPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		p := s.pending[0]
		s.pending = s.pending[1:]
		return p, true, nil
	}
	switch {
	case s.err != nil:
		return streamPair{}, true, s.err
	case s.done:
		return streamPair{}, true, io.EOF
	case s.closed:
		return streamPair{}, true, ErrStreamClosed
	}
	return streamPair{}, false, nil
}

// apply 累加一个原始 chunk；只携带工具参数片段的 chunk 返回 ok 为 false
func (s *Stream) apply(raw Chunk, err error) (streamPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, io.EOF) {
		s.finish()
		return streamPair{}, true, io.EOF
	}
	if err != nil {
		s.err = err
		_ = s.reader.Close()
		return streamPair{}, true, err
	}

	chunk := s.totals.add(raw, s.call)
	deltas := raw.ToolCallDeltas()
	tools := s.construct(s.asm.feed(deltas, raw.FinishReasons()))
	if len(tools) == 0 {
		if len(s.call.tools) > 0 && len(deltas) > 0 && chunk.Content() == "" {
			return streamPair{}, false, nil
		}
		return streamPair{chunk: chunk}, true, nil
	}
	for _, t := range tools[1:] {
		s.pending = append(s.pending, streamPair{chunk: chunk, tool: t})
	}
	return streamPair{chunk: chunk, tool: tools[0]}, true, nil
}

func (s *Stream) construct(completed []schema.ToolCall) []*ToolInstance {
	var out []*ToolInstance
	for _, tc := range completed {
		spec := findTool(s.call.tools, tc.Name)
		if spec == nil {
			s.call.logger.Debug("llm stream tool call ignored", "tool", tc.Name, "reason", "not declared")
			continue
		}
		inst, err := spec.New(tc)
		if err != nil {
			s.call.logger.Warn("llm stream tool call dropped", "tool", tc.Name, "id", tc.ID, "err", err)
			continue
		}
		s.calls = append(s.calls, tc)
		s.tools = append(s.tools, inst)
		out = append(out, inst)
	}
	return out
}

func (s *Stream) finish() {
	for _, tc := range s.asm.drain() {
		s.call.logger.Warn("llm stream tool call dropped", "tool", tc.Name, "id", tc.ID, "reason", "stream ended before the call completed")
	}
	s.done = true
	s.messageParam = s.call.provider.MessageParam(s.totals.content.String(), slices.Clone(s.calls))
	_ = s.reader.Close()
}

// Close 释放底层连接；未读完就关闭的流保持未完成状态
func (s *Stream) Close() error {
	s.mu.Lock()
	if !s.done {
		s.closed = true
	}
	s.mu.Unlock()
	return s.reader.Close()
}

// Done 判断流是否已被完整消费
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Content 返回到目前为止累积的文本
func (s *Stream) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.content.String()
}

// Cost 返回最后一个非空的费用
func (s *Stream) Cost() *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.cost
}

// Usage 返回最后一个非空的用量
func (s *Stream) Usage() *schema.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.usage
}

// Model 返回 provider 报告的模型名，缺失时为请求的模型名
func (s *Stream) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totals.model != "" {
		return s.totals.model
	}
	return s.call.model
}

// FinishReasons 返回流中出现过的结束原因
func (s *Stream) FinishReasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.totals.finishReasons)
}

// ToolCalls 返回到目前为止已完成的工具调用
func (s *Stream) ToolCalls() []*ToolInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tools)
}

// UserMessageParam 返回请求中最后一条用户消息
func (s *Stream) UserMessageParam() *schema.Message { return s.call.userMessage() }

// Metadata 返回调用的元数据
func (s *Stream) Metadata() Metadata { return s.call.metadata }

// MessageParam 返回 provider 线格式的助手消息，流未读完时返回 *IncompleteStreamError
func (s *Stream) MessageParam() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		return nil, &IncompleteStreamError{Field: "message_param"}
	}
	return s.messageParam, nil
}

// Message 返回规范化的助手消息，流未读完时返回 *IncompleteStreamError
func (s *Stream) Message() (schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		return schema.Message{}, &IncompleteStreamError{Field: "message"}
	}
	return schema.AssistantToolCallMessage(s.totals.content.String(), s.calls...), nil
}

// StreamResult 是异步读取流时的一项结果
type StreamResult struct {
	Chunk *CallResponseChunk
	Tool  *ToolInstance
	Err   error
}

// Chan 在单个 goroutine 中按序读取流，顺序与累加规则与 Recv 相同
//
// 正常结束时关闭 channel；出错时先发送错误再关闭。ctx 取消时关闭流
func (s *Stream) Chan(ctx context.Context) <-chan StreamResult {
	ch := make(chan StreamResult)
	go func() {
		defer close(ch)
		for {
			chunk, tool, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case ch <- StreamResult{Chunk: chunk, Tool: tool, Err: err}:
			case <-ctx.Done():
				_ = s.Close()
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// streamTotals 流的累加器：文本拼接，费用与用量取最后一个非空值
type streamTotals struct {
	content       strings.Builder
	cost          *float64
	usage         *schema.Usage
	model         string
	finishReasons []string
}

func (t *streamTotals) add(raw Chunk, call *callContext) *CallResponseChunk {
	t.content.WriteString(raw.Content())
	if m := raw.Model(); m != "" {
		t.model = m
	}
	t.finishReasons = append(t.finishReasons, raw.FinishReasons()...)

	model := t.model
	if model == "" {
		model = call.model
	}
	chunk := &CallResponseChunk{chunk: raw}
	if u := raw.Usage(); u != nil {
		cp := *u
		t.usage = &cp
		chunk.cost = call.provider.Cost(model, u)
	}
	if chunk.cost != nil {
		t.cost = chunk.cost
	}
	return chunk
}

var toolFinishReasons = []string{"tool_calls", "function_call", "tool_use"}

// toolCallAssembler 按 provider 下发的 index 拼接工具调用参数片段
//
// 没有打开的调用时处于文本累积状态；同一 index 出现新 ID、provider 标记 Done，
// 或出现工具类结束原因时，调用完成
type toolCallAssembler struct {
	open map[int]*openToolCall
}

type openToolCall struct {
	id   string
	name string
	args strings.Builder
}

func (o *openToolCall) toolCall() schema.ToolCall {
	return schema.ToolCall{ID: o.id, Name: o.name, Arguments: o.args.String()}
}

func (a *toolCallAssembler) feed(deltas []ToolCallDelta, finishReasons []string) []schema.ToolCall {
	if a.open == nil {
		a.open = make(map[int]*openToolCall)
	}

	var completed []schema.ToolCall
	for _, d := range deltas {
		cur := a.open[d.Index]
		if d.ID != "" {
			if cur != nil {
				completed = append(completed, cur.toolCall())
			}
			cur = &openToolCall{id: d.ID, name: d.Name}
			a.open[d.Index] = cur
		} else if cur == nil {
			if d.Name == "" && d.Arguments == "" {
				continue
			}
			cur = &openToolCall{name: d.Name}
			a.open[d.Index] = cur
		} else if cur.name == "" {
			cur.name = d.Name
		}
		cur.args.WriteString(d.Arguments)

		if d.Done {
			completed = append(completed, cur.toolCall())
			delete(a.open, d.Index)
		}
	}

	for _, r := range finishReasons {
		if slices.Contains(toolFinishReasons, r) {
			completed = append(completed, a.drain()...)
			break
		}
	}
	return completed
}

// drain 按 index 顺序关闭并返回所有打开的调用
func (a *toolCallAssembler) drain() []schema.ToolCall {
	if len(a.open) == 0 {
		return nil
	}
	idx := make([]int, 0, len(a.open))
	for i := range a.open {
		idx = append(idx, i)
	}
	slices.Sort(idx)

	out := make([]schema.ToolCall, 0, len(idx))
	for _, i := range idx {
		out = append(out, a.open[i].toolCall())
		delete(a.open, i)
	}
	return out
}
