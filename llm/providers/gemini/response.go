package gemini

import (
	"strings"

	"github.com/google/uuid"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// GenerateResponse 是 generateContent 的响应，也是流式响应中每个事件的载荷
type GenerateResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
	ResponseID    string         `json:"responseId,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Response 包装 GenerateResponse；Gemini 不返回调用 ID，构造时为每个函数调用生成一次
type Response struct {
	gr    GenerateResponse
	calls []schema.ToolCall
}

var _ llm.Response = (*Response)(nil)

func newResponse(gr GenerateResponse) *Response {
	return &Response{gr: gr, calls: functionCalls(gr)}
}

func functionCalls(gr GenerateResponse) []schema.ToolCall {
	if len(gr.Candidates) == 0 {
		return nil
	}
	var out []schema.ToolCall
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.FunctionCall == nil {
			continue
		}
		args := string(p.FunctionCall.Args)
		if args == "" || args == "null" {
			args = "{}"
		}
		out = append(out, schema.ToolCall{ID: uuid.NewString(), Name: p.FunctionCall.Name, Arguments: args})
	}
	return out
}

func (r *Response) ID() string    { return r.gr.ResponseID }
func (r *Response) Model() string { return r.gr.ModelVersion }
func (r *Response) Raw() any      { return r.gr }

func (r *Response) Content() string { return candidateText(r.gr) }

func candidateText(gr GenerateResponse) string {
	if len(gr.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (r *Response) FinishReasons() []string { return finishReasons(r.gr) }

func finishReasons(gr GenerateResponse) []string {
	var out []string
	for _, c := range gr.Candidates {
		if c.FinishReason != "" {
			out = append(out, c.FinishReason)
		}
	}
	return out
}

func (r *Response) Usage() *schema.Usage { return usage(r.gr.UsageMetadata) }

func usage(u *UsageMetadata) *schema.Usage {
	if u == nil {
		return nil
	}
	return &schema.Usage{InputTokens: u.PromptTokenCount, OutputTokens: u.CandidatesTokenCount}
}

func (r *Response) RawToolCalls() []schema.ToolCall { return r.calls }

// MessageParam 原样返回首个候选的内容
func (r *Response) MessageParam() any {
	if len(r.gr.Candidates) == 0 {
		return Content{Role: "model"}
	}
	c := r.gr.Candidates[0].Content
	c.Role = "model"
	return c
}
