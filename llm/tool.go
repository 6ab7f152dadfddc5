package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// DefaultToolDescription 工具类型未提供描述时使用
const DefaultToolDescription = "Correctly formatted and typed parameters extracted from the completion. " +
	"Must include required parameters and may exclude optional parameters unless present in the text."

// ErrToolNotCallable 工具没有绑定可执行函数
var ErrToolNotCallable = errors.New("llm: tool has no bound function")

// ToolSpec is a named, described, schema-bearing tool definition.
//
// New constructs one ToolInstance per tool-call event in a response.
type ToolSpec interface {
	Name() string
	Description() string
	Parameters() map[string]any
	New(call schema.ToolCall) (*ToolInstance, error)
}

// ToolFunc 工具的执行函数，args 为解码后的参数
type ToolFunc[T any] func(ctx context.Context, args T) (string, error)

// Tool is a ToolSpec whose arguments decode into T.
type Tool[T any] struct {
	name        string
	description string
	params      map[string]any
	fn          ToolFunc[T]
	wrap        bool
}

var _ ToolSpec = (*Tool[struct{}])(nil)

// ToolOption 工具的可选参数
type ToolOption func(*toolOptions)

type toolOptions struct {
	name        string
	description string
}

// WithToolName 覆盖工具名称，默认为类型名
func WithToolName(name string) ToolOption {
	return func(o *toolOptions) { o.name = name }
}

// WithToolDescription 覆盖工具描述，默认取 T 的 Describer 实现
func WithToolDescription(description string) ToolOption {
	return func(o *toolOptions) { o.description = description }
}

// NewTool 由参数类型 T 生成工具定义
func NewTool[T any](opts ...ToolOption) (*Tool[T], error) {
	var o toolOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	t := reflect.TypeFor[T]()
	params, err := SchemaOf(t)
	if err != nil {
		return nil, err
	}
	if o.name == "" {
		o.name = typeName(t)
	}
	if o.description == "" {
		o.description, _ = params["description"].(string)
	}
	if o.description == "" {
		o.description = DefaultToolDescription
	}
	return &Tool[T]{
		name:        o.name,
		description: o.description,
		params:      params,
		wrap:        wrapsValue(t),
	}, nil
}

// MustNewTool 同 NewTool，失败时 panic，适用于包级变量
func MustNewTool[T any](opts ...ToolOption) *Tool[T] {
	t, err := NewTool[T](opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// FuncTool 将普通函数包装为工具：参数结构体 T 决定 schema，description 相当于函数文档
func FuncTool[T any](name, description string, fn ToolFunc[T]) (*Tool[T], error) {
	if strings.TrimSpace(name) == "" {
		return nil, configErrorf("function tool requires a name")
	}
	if strings.TrimSpace(description) == "" {
		return nil, configErrorf("function tool %q requires a description", name)
	}
	if fn == nil {
		return nil, configErrorf("function tool %q requires a function", name)
	}
	t, err := NewTool[T](WithToolName(name), WithToolDescription(description))
	if err != nil {
		return nil, err
	}
	t.fn = fn
	return t, nil
}

func (t *Tool[T]) Name() string        { return t.name }
func (t *Tool[T]) Description() string { return t.description }

// Parameters 返回参数 schema 的拷贝，不含 title 与 description
func (t *Tool[T]) Parameters() map[string]any {
	out := make(map[string]any, len(t.params))
	for k, v := range t.params {
		if k == "title" || k == "description" {
			continue
		}
		out[k] = v
	}
	return out
}

// New 解析工具调用参数并构造实例，参数无法解析时返回 *ToolArgumentError
func (t *Tool[T]) New(call schema.ToolCall) (*ToolInstance, error) {
	v, err := t.decode([]byte(call.Arguments))
	if err != nil {
		return nil, &ToolArgumentError{Tool: t.name, ID: call.ID, Arguments: call.Arguments, Cause: err}
	}
	inst := &ToolInstance{ToolCall: call, Args: v, spec: t}
	if t.fn != nil {
		fn, args := t.fn, v.(T)
		inst.run = func(ctx context.Context) (string, error) { return fn(ctx, args) }
	}
	return inst, nil
}

func (t *Tool[T]) decode(data []byte) (any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}
	var v T
	if t.wrap {
		var box struct {
			Value *T `json:"value"`
		}
		if err := json.Unmarshal(data, &box); err != nil {
			return nil, err
		}
		if box.Value == nil {
			return nil, errors.New(`missing "value"`)
		}
		v = *box.Value
	} else if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ToolInstance is one tool call from a response, with decoded arguments.
type ToolInstance struct {
	ToolCall schema.ToolCall
	// Args 解码后的参数，类型为工具定义的 T
	Args any

	spec ToolSpec
	run  func(ctx context.Context) (string, error)
}

func (t *ToolInstance) Name() string   { return t.ToolCall.Name }
func (t *ToolInstance) ID() string     { return t.ToolCall.ID }
func (t *ToolInstance) Spec() ToolSpec { return t.spec }

// Call 执行工具绑定的函数
func (t *ToolInstance) Call(ctx context.Context) (string, error) {
	if t.run == nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotCallable, t.Name())
	}
	return t.run(ctx)
}

// ResultMessage 构造回传工具执行结果的消息
func (t *ToolInstance) ResultMessage(output string) schema.Message {
	return schema.ToolResultMessage(t.ID(), t.Name(), output)
}

// ToolArgs 以具体类型取出工具参数
func ToolArgs[T any](t *ToolInstance) (T, bool) {
	if t == nil {
		var zero T
		return zero, false
	}
	v, ok := t.Args.(T)
	return v, ok
}

// findTool 按名称查找工具定义
func findTool(tools []ToolSpec, name string) ToolSpec {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}
