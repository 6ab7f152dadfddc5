package openai_compat

import (
	"github.com/openai/openai-go"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// Response 包装 openai.ChatCompletion，只读取第一个 choice
type Response struct {
	completion *openai.ChatCompletion
}

var _ llm.Response = (*Response)(nil)

func (r *Response) ID() string    { return r.completion.ID }
func (r *Response) Model() string { return r.completion.Model }
func (r *Response) Raw() any      { return r.completion }

// Completion 返回 SDK 原始响应
func (r *Response) Completion() *openai.ChatCompletion { return r.completion }

func (r *Response) Content() string {
	if len(r.completion.Choices) == 0 {
		return ""
	}
	return r.completion.Choices[0].Message.Content
}

func (r *Response) FinishReasons() []string {
	out := make([]string, 0, len(r.completion.Choices))
	for _, c := range r.completion.Choices {
		out = append(out, string(c.FinishReason))
	}
	return out
}

func (r *Response) Usage() *schema.Usage {
	return usage(r.completion.Usage)
}

func (r *Response) RawToolCalls() []schema.ToolCall {
	if len(r.completion.Choices) == 0 {
		return nil
	}
	calls := r.completion.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, schema.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	return out
}

func (r *Response) MessageParam() any {
	return assistantParam(r.Content(), r.RawToolCalls())
}

// usage 在输入输出均为 0 时视为未返回用量
func usage(u openai.CompletionUsage) *schema.Usage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}
	return &schema.Usage{
		InputTokens:  int(u.PromptTokens),
		OutputTokens: int(u.CompletionTokens),
	}
}
