package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// ResponseModel describes the structured type an extraction call produces.
// It is registered with the provider as exactly one synthetic tool, or as a
// JSON schema instruction under JSON mode.
type ResponseModel struct {
	typ  reflect.Type
	tool extractionTool
	err  error
}

type extractionTool interface {
	ToolSpec
	decode(data []byte) (any, error)
}

// ResponseModelOf 声明 T 为抽取的目标类型
//
// 非结构体类型包装在 value 属性中；错误延迟到声明调用时以 ConfigurationError 返回
func ResponseModelOf[T any](opts ...ToolOption) *ResponseModel {
	tool, err := NewTool[T](opts...)
	if err != nil {
		return &ResponseModel{typ: reflect.TypeFor[T](), err: err}
	}
	return &ResponseModel{typ: reflect.TypeFor[T](), tool: tool}
}

// Type 返回目标类型
func (m *ResponseModel) Type() reflect.Type { return m.typ }

// Tool 返回合成的抽取工具
func (m *ResponseModel) Tool() ToolSpec { return m.tool }

func (m *ResponseModel) validate() error {
	if m.err != nil {
		return configErrorf("response model %s: %v", m.typ, m.err)
	}
	return nil
}

// jsonInstruction 是 JSON 模式下追加到最后一条用户消息的 schema 说明
func (m *ResponseModel) jsonInstruction() (string, error) {
	b, err := json.MarshalIndent(m.tool.Parameters(), "", "  ")
	if err != nil {
		return "", err
	}
	return "Extract a valid JSON object instance from the content using this schema:\n\n" + string(b), nil
}

// ExtractedModel 可嵌入到抽取目标类型中，用于在抽取后访问产生它的 CallResponse
//
// 不导出任何字段，不会出现在生成的 schema 中
type ExtractedModel struct {
	response *CallResponse
}

// Response 返回产生该值的响应，未经抽取时为 nil
func (m *ExtractedModel) Response() *CallResponse { return m.response }

func (m *ExtractedModel) setResponse(r *CallResponse) { m.response = r }

type responseSetter interface {
	setResponse(*CallResponse)
}

// extractionJSON 从响应中取出待解析的 JSON：JSON 模式取文本，否则取第一个工具调用的参数
func extractionJSON(resp *CallResponse, jsonMode bool) (string, error) {
	if jsonMode {
		if s, ok := findJSONObject(resp.Content()); ok {
			return s, nil
		}
		return "", ErrNoStructuredOutput
	}
	calls := resp.Response().RawToolCalls()
	if len(calls) == 0 {
		return "", ErrNoStructuredOutput
	}
	return calls[0].Arguments, nil
}

// findJSONObject 去掉 Markdown 代码块，截取第一个 { 或 [ 到最后一个对应闭合符号
func findJSONObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "```"))
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", false
	}
	return s[start : end+1], true
}

func extractValue(model *ResponseModel, resp *CallResponse, jsonMode bool) (any, error) {
	raw, err := extractionJSON(resp, jsonMode)
	if err != nil {
		return nil, err
	}
	v, err := model.tool.decode([]byte(raw))
	if err != nil {
		return nil, &ToolArgumentError{Tool: model.tool.Name(), Arguments: raw, Cause: err}
	}
	return attachResponse(v, resp), nil
}

// attachResponse 为嵌入 ExtractedModel（值或指针）的值设置响应反向引用
func attachResponse(v any, resp *CallResponse) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return v
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return v
		}
		allocExtractedModel(rv.Elem())
		if s, ok := v.(responseSetter); ok {
			s.setResponse(resp)
		}
		return v
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	allocExtractedModel(ptr.Elem())
	if s, ok := ptr.Interface().(responseSetter); ok {
		s.setResponse(resp)
		return ptr.Elem().Interface()
	}
	return v
}

var extractedModelPtr = reflect.TypeOf((*ExtractedModel)(nil))

// allocExtractedModel 为直接嵌入的 nil *ExtractedModel 分配实例，避免经由提升方法解引用 nil
func allocExtractedModel(rv reflect.Value) {
	if rv.Kind() != reflect.Struct || !rv.CanSet() {
		return
	}
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if f.Anonymous && f.Type == extractedModelPtr && rv.Field(i).IsNil() {
			rv.Field(i).Set(reflect.New(extractedModelPtr.Elem()))
		}
	}
}

// StructuredStream yields successively more complete values of T parsed from
// a streamed extraction. Fields not yet received keep their zero value.
type StructuredStream[T any] struct {
	reader   ChunkReader
	call     *callContext
	model    *ResponseModel
	jsonMode bool

	// mu 保护 totals 与 last，使 Chan 读取期间可从其他 goroutine 调用 Value、Cost、Usage
	mu sync.Mutex

	totals    streamTotals
	buf       strings.Builder
	toolIndex *int
	lastJSON  string
	last      T
	hasLast   bool
	done      bool
	err       error
}

func newStructuredStream[T any](reader ChunkReader, call *callContext, model *ResponseModel, jsonMode bool) *StructuredStream[T] {
	return &StructuredStream[T]{reader: reader, call: call, model: model, jsonMode: jsonMode}
}

// Recv 返回下一个部分结果，流结束时返回 io.EOF
//
// 中间结果按 trailing-fragment 方式尽力解析；最终结果无法严格解析时保留最后一个有效的部分结果
func (s *StructuredStream[T]) Recv() (T, error) {
	var zero T
	for {
		if s.err != nil {
			return zero, s.err
		}
		if s.done {
			return zero, io.EOF
		}

		raw, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			_ = s.reader.Close()
			if v, ok := s.final(); ok {
				return v, nil
			}
			return zero, io.EOF
		}
		if err != nil {
			s.err = err
			_ = s.reader.Close()
			return zero, err
		}

		s.mu.Lock()
		s.totals.add(raw, s.call)
		s.mu.Unlock()
		if !s.append(raw) {
			continue
		}
		if v, ok := s.partial(); ok {
			return v, nil
		}
	}
}

// append 把 chunk 中属于抽取结果的 JSON 片段写入缓冲区，返回缓冲区是否变化
func (s *StructuredStream[T]) append(raw Chunk) bool {
	before := s.buf.Len()
	if s.jsonMode {
		s.buf.WriteString(raw.Content())
		return s.buf.Len() != before
	}
	for _, d := range raw.ToolCallDeltas() {
		if s.toolIndex == nil {
			if d.ID == "" && d.Name == "" && d.Arguments == "" {
				continue
			}
			idx := d.Index
			s.toolIndex = &idx
		}
		if d.Index == *s.toolIndex {
			s.buf.WriteString(d.Arguments)
		}
	}
	return s.buf.Len() != before
}

func (s *StructuredStream[T]) source() string {
	if s.jsonMode {
		if i := strings.IndexAny(s.buf.String(), "{["); i >= 0 {
			return s.buf.String()[i:]
		}
		return ""
	}
	return s.buf.String()
}

func (s *StructuredStream[T]) partial() (T, bool) {
	var zero T
	src := s.source()
	if src == "" {
		return zero, false
	}
	parsed, err := ParsePartialJSON(src)
	if err != nil {
		return zero, false
	}
	b, err := json.Marshal(parsed)
	if err != nil || string(b) == s.lastJSON {
		return zero, false
	}
	v, err := s.model.tool.decode(b)
	if err != nil {
		return zero, false
	}
	out, ok := v.(T)
	if !ok {
		return zero, false
	}
	s.lastJSON = string(b)
	s.setLast(out)
	return out, true
}

func (s *StructuredStream[T]) final() (T, bool) {
	var zero T
	src := s.source()
	if s.jsonMode {
		var ok bool
		if src, ok = findJSONObject(src); !ok {
			return zero, false
		}
	}
	var parsed any
	if err := json.Unmarshal([]byte(src), &parsed); err != nil {
		if s.hasLast {
			s.call.logger.Warn("llm structured stream ended with incomplete JSON", "model", s.model.tool.Name(), "err", err)
		}
		return zero, false
	}
	b, err := json.Marshal(parsed)
	if err != nil || string(b) == s.lastJSON {
		return zero, false
	}
	v, err := s.model.tool.decode(b)
	if err != nil {
		return zero, false
	}
	out, ok := v.(T)
	if !ok {
		return zero, false
	}
	s.lastJSON = string(b)
	s.setLast(out)
	return out, true
}

// Value 返回最后一个有效的结果
func (s *StructuredStream[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

func (s *StructuredStream[T]) setLast(v T) {
	s.mu.Lock()
	s.last, s.hasLast = v, true
	s.mu.Unlock()
}

// Close 释放底层连接
func (s *StructuredStream[T]) Close() error {
	s.done = true
	return s.reader.Close()
}

// Cost 返回最后一个非空的费用
func (s *StructuredStream[T]) Cost() *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.cost
}

// Usage 返回最后一个非空的用量
func (s *StructuredStream[T]) Usage() *schema.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.usage
}

// Chan 在单个 goroutine 中按序读取部分结果
func (s *StructuredStream[T]) Chan(ctx context.Context) <-chan Result[T] {
	ch := make(chan Result[T])
	go func() {
		defer close(ch)
		for {
			v, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case ch <- Result[T]{Value: v, Err: err}:
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

func (m *ResponseModel) String() string {
	if m == nil || m.typ == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ResponseModel(%s)", m.typ)
}
