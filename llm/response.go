package llm

import (
	"log/slog"
	"slices"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// callContext 是一次调用在 setup 之后确定的上下文，由响应与流共享只读引用
type callContext struct {
	provider Provider
	model    string
	prompt   string
	messages []schema.Message
	tools    []ToolSpec
	params   CallParams
	metadata Metadata
	logger   *slog.Logger
}

func (c *callContext) userMessage() *schema.Message {
	m, ok := schema.LastUserMessage(c.messages)
	if !ok {
		return nil
	}
	return &m
}

// CallResponse is the normalized result of a non-streamed call.
type CallResponse struct {
	resp Response
	call *callContext
	cost *float64
}

func newCallResponse(resp Response, call *callContext) *CallResponse {
	r := &CallResponse{resp: resp, call: call}
	r.cost = call.provider.Cost(r.Model(), resp.Usage())
	return r
}

// Response 返回 provider 的响应规范化器
func (r *CallResponse) Response() Response { return r.resp }

// Raw 返回 provider 原始响应，调用方不得修改
func (r *CallResponse) Raw() any { return r.resp.Raw() }

func (r *CallResponse) ID() string      { return r.resp.ID() }
func (r *CallResponse) Content() string { return r.resp.Content() }

func (r *CallResponse) FinishReasons() []string { return r.resp.FinishReasons() }

// Model 返回响应中的模型名，缺失时返回请求的模型名
func (r *CallResponse) Model() string {
	if m := r.resp.Model(); m != "" {
		return m
	}
	return r.call.model
}

// Usage 返回 token 用量，provider 未返回时为 nil
func (r *CallResponse) Usage() *schema.Usage { return r.resp.Usage() }

// Cost 返回按价格表计算的费用（美元），未知模型或缺少用量时为 nil
func (r *CallResponse) Cost() *float64 { return r.cost }

// ToolCalls 将响应中的工具调用构造为 ToolInstance
//
// 名称未声明的调用被忽略；参数 JSON 无法解析时返回 *ToolArgumentError
func (r *CallResponse) ToolCalls() ([]*ToolInstance, error) {
	raw := r.resp.RawToolCalls()
	if len(raw) == 0 || len(r.call.tools) == 0 {
		return nil, nil
	}
	out := make([]*ToolInstance, 0, len(raw))
	for _, tc := range raw {
		spec := findTool(r.call.tools, tc.Name)
		if spec == nil {
			r.call.logger.Debug("llm tool call ignored", "tool", tc.Name, "reason", "not declared")
			continue
		}
		inst, err := spec.New(tc)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// Tool 返回第一个工具调用，没有时返回 nil
func (r *CallResponse) Tool() (*ToolInstance, error) {
	tools, err := r.ToolCalls()
	if err != nil || len(tools) == 0 {
		return nil, err
	}
	return tools[0], nil
}

// MessageParam 返回 provider 线格式的助手消息
func (r *CallResponse) MessageParam() any { return r.resp.MessageParam() }

// Message 返回规范化的助手消息，用于拼接对话历史
func (r *CallResponse) Message() schema.Message {
	return schema.AssistantToolCallMessage(r.Content(), r.resp.RawToolCalls()...)
}

// UserMessageParam 返回请求中最后一条用户消息
func (r *CallResponse) UserMessageParam() *schema.Message { return r.call.userMessage() }

// Messages 返回发送给 provider 的消息序列
func (r *CallResponse) Messages() []schema.Message { return slices.Clone(r.call.messages) }

// Prompt 返回调用声明的提示词模板
func (r *CallResponse) Prompt() string { return r.call.prompt }

func (r *CallResponse) CallParams() CallParams { return r.call.params.Clone() }
func (r *CallResponse) Metadata() Metadata     { return r.call.metadata }

// CallResponseChunk is one streamed increment. Content is the delta only.
type CallResponseChunk struct {
	chunk Chunk
	cost  *float64
}

func (c *CallResponseChunk) Chunk() Chunk            { return c.chunk }
func (c *CallResponseChunk) Raw() any                { return c.chunk.Raw() }
func (c *CallResponseChunk) ID() string              { return c.chunk.ID() }
func (c *CallResponseChunk) Model() string           { return c.chunk.Model() }
func (c *CallResponseChunk) Content() string         { return c.chunk.Content() }
func (c *CallResponseChunk) FinishReasons() []string { return c.chunk.FinishReasons() }
func (c *CallResponseChunk) Usage() *schema.Usage    { return c.chunk.Usage() }
func (c *CallResponseChunk) Cost() *float64          { return c.cost }
