package cohere

import (
	"github.com/google/uuid"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// ChatResponse 是非流式 /v1/chat 的响应，也是 stream-end 事件中的 response
type ChatResponse struct {
	ResponseID   string `json:"response_id"`
	Text         string `json:"text"`
	GenerationID string `json:"generation_id"`
	FinishReason string `json:"finish_reason"`
	ToolCalls    []Call `json:"tool_calls,omitempty"`
	Meta         *Meta  `json:"meta,omitempty"`
}

type Meta struct {
	BilledUnits *BilledUnits `json:"billed_units,omitempty"`
}

type BilledUnits struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

func (m *Meta) usage() *schema.Usage {
	if m == nil || m.BilledUnits == nil {
		return nil
	}
	return &schema.Usage{
		InputTokens:  int(m.BilledUnits.InputTokens),
		OutputTokens: int(m.BilledUnits.OutputTokens),
	}
}

// Response 包装 ChatResponse；Cohere 不返回调用 ID，构造时为每个调用生成一次
type Response struct {
	cr    ChatResponse
	calls []schema.ToolCall
}

var _ llm.Response = (*Response)(nil)

func newResponse(cr ChatResponse) *Response {
	return &Response{cr: cr, calls: toolCalls(cr.ToolCalls)}
}

func toolCalls(calls []Call) []schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		args := string(c.Parameters)
		if args == "" || args == "null" {
			args = "{}"
		}
		out = append(out, schema.ToolCall{ID: uuid.NewString(), Name: c.Name, Arguments: args})
	}
	return out
}

func (r *Response) ID() string { return r.cr.GenerationID }

// Model Cohere 响应不包含模型名
func (r *Response) Model() string   { return "" }
func (r *Response) Raw() any        { return r.cr }
func (r *Response) Content() string { return r.cr.Text }

func (r *Response) FinishReasons() []string {
	if r.cr.FinishReason == "" {
		return nil
	}
	return []string{r.cr.FinishReason}
}

func (r *Response) Usage() *schema.Usage            { return r.cr.Meta.usage() }
func (r *Response) RawToolCalls() []schema.ToolCall { return r.calls }

func (r *Response) MessageParam() any {
	return ChatMessage{Role: "CHATBOT", Message: r.cr.Text, ToolCalls: r.cr.ToolCalls}
}
