package anthropic

import (
	"strings"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// MessageResponse 是非流式 /v1/messages 的响应
type MessageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *wireUsage     `json:"usage,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Response struct {
	msg MessageResponse
}

var _ llm.Response = (*Response)(nil)

func (r *Response) ID() string    { return r.msg.ID }
func (r *Response) Model() string { return r.msg.Model }
func (r *Response) Raw() any      { return r.msg }

func (r *Response) Content() string {
	var b strings.Builder
	for _, blk := range r.msg.Content {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

func (r *Response) FinishReasons() []string {
	if r.msg.StopReason == "" {
		return nil
	}
	return []string{r.msg.StopReason}
}

func (r *Response) Usage() *schema.Usage {
	if r.msg.Usage == nil {
		return nil
	}
	return &schema.Usage{InputTokens: r.msg.Usage.InputTokens, OutputTokens: r.msg.Usage.OutputTokens}
}

func (r *Response) RawToolCalls() []schema.ToolCall {
	var out []schema.ToolCall
	for _, blk := range r.msg.Content {
		if blk.Type != "tool_use" {
			continue
		}
		args := string(blk.Input)
		if args == "" {
			args = "{}"
		}
		out = append(out, schema.ToolCall{ID: blk.ID, Name: blk.Name, Arguments: args})
	}
	return out
}

// MessageParam 原样保留响应中的内容块
func (r *Response) MessageParam() any {
	return Message{Role: "assistant", Content: r.msg.Content}
}
