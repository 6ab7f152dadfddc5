package openai_compat

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/sjson"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// Request 是一次 chat completions 请求
//
// Params 保存 SDK 的强类型字段，Extra 保存调用参数等任意字段，发送时逐个写入请求体
type Request struct {
	Params openai.ChatCompletionNewParams
	Extra  map[string]any
	Stream bool
}

// JSON 返回将要发送的请求体，model 在分发时才写入
func (r *Request) JSON() ([]byte, error) {
	b, err := json.Marshal(r.Params)
	if err != nil {
		return nil, err
	}
	for _, k := range r.extraKeys() {
		b, err = sjson.SetBytes(b, k, r.Extra[k])
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}
	if r.Stream {
		b, err = sjson.SetBytes(b, "stream", true)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (r *Request) extraKeys() []string {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (r *Request) requestOptions() []option.RequestOption {
	keys := r.extraKeys()
	opts := make([]option.RequestOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, option.WithJSONSet(k, r.Extra[k]))
	}
	return opts
}

func (p *Provider) BuildRequest(in llm.CallInput) (llm.Request, error) {
	msgs, err := convertMessages(in.Messages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}

	params := in.Params.Clone()
	if p.hooks.BeforeBuild != nil {
		p.hooks.BeforeBuild(params)
	}

	req := &Request{
		Params: openai.ChatCompletionNewParams{Messages: msgs},
		Extra:  map[string]any(params),
		Stream: in.Stream,
	}
	if len(in.Tools) > 0 {
		req.Params.Tools = convertTools(in.Tools)
		// 声明了工具时一律为 auto，覆盖调用参数中的 tool_choice
		req.Extra["tool_choice"] = "auto"
	}
	if in.JSONMode && p.caps.JSONMode {
		req.Extra["response_format"] = map[string]any{"type": "json_object"}
	}
	if p.hooks.PatchRequest != nil {
		p.hooks.PatchRequest(req.Extra)
	}
	return req, nil
}

func convertMessages(msgs []schema.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case schema.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case schema.RoleUser:
			if results := m.ToolResults(); len(results) > 0 {
				out = append(out, toolMessages(results)...)
				continue
			}
			out = append(out, userMessage(m))
		case schema.RoleAssistant:
			out = append(out, assistantParam(m.Text(), m.ToolCalls()))
		case schema.RoleTool:
			out = append(out, toolMessages(m.ToolResults())...)
		default:
			return nil, fmt.Errorf("unsupported role %q", m.Role)
		}
	}
	return out, nil
}

func userMessage(m schema.Message) openai.ChatCompletionMessageParamUnion {
	if m.TextOnly() {
		return openai.UserMessage(m.Text())
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Content))
	for _, part := range m.Content {
		switch v := part.(type) {
		case schema.TextContent:
			parts = append(parts, openai.TextContentPart(v.Text))
		case schema.ImageContent:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: v.DataURL(),
			}))
		}
	}
	return openai.UserMessage(parts)
}

func toolMessages(results []schema.ToolResultContent) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(results))
	for _, r := range results {
		out = append(out, openai.ToolMessage(r.Value, r.ID))
	}
	return out
}

// assistantParam 构造助手消息，带工具调用时同时保留文本
func assistantParam(content string, calls []schema.ToolCall) openai.ChatCompletionMessageParamUnion {
	if len(calls) == 0 {
		return openai.AssistantMessage(content)
	}

	assistant := openai.ChatCompletionAssistantMessageParam{
		ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls)),
	}
	if content != "" {
		assistant.Content.OfString = param.NewOpt(content)
	}
	for _, c := range calls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: c.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func convertTools(tools []llm.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: param.NewOpt(t.Description()),
				Parameters:  shared.FunctionParameters(t.Parameters()),
			},
		})
	}
	return out
}
