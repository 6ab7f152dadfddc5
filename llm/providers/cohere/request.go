package cohere

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// ErrMultimodal Cohere 只接受纯文本消息
var ErrMultimodal = errors.New("Cohere does not currently support multimodalities")

// Request 是 /v1/chat 的请求体
//
// Message 是最后一条用户消息；之前的对话放在 ChatHistory。
// 若对话以工具结果结尾，Message 为空并通过 ToolResults 回传结果
type Request struct {
	Model          string         `json:"model"`
	Message        string         `json:"message"`
	ChatHistory    []ChatMessage  `json:"chat_history,omitempty"`
	Preamble       string         `json:"preamble,omitempty"`
	Tools          []Tool         `json:"tools,omitempty"`
	ToolResults    []ToolResult   `json:"tool_results,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	Stream         bool           `json:"stream,omitempty"`

	Extra map[string]any `json:"-"`
}

// ChatMessage 是 chat_history 中的一项，也是助手消息参数的类型
type ChatMessage struct {
	Role        string       `json:"role"`
	Message     string       `json:"message,omitempty"`
	ToolCalls   []Call       `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

type Call struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

type ToolResult struct {
	Call    Call             `json:"call"`
	Outputs []map[string]any `json:"outputs"`
}

type Tool struct {
	Name                 string                  `json:"name"`
	Description          string                  `json:"description"`
	ParameterDefinitions map[string]ParameterDef `json:"parameter_definitions,omitempty"`
}

type ParameterDef struct {
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
}

func (r *Request) JSON() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if b, err = sjson.SetBytes(b, k, r.Extra[k]); err != nil {
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}
	return b, nil
}

func (c *Client) BuildRequest(in llm.CallInput) (llm.Request, error) {
	req := &Request{Extra: map[string]any(in.Params.Clone()), Stream: in.Stream}
	if err := convertMessages(req, in.Messages); err != nil {
		return nil, fmt.Errorf("cohere: %w", err)
	}
	for _, t := range in.Tools {
		req.Tools = append(req.Tools, Tool{
			Name:                 t.Name(),
			Description:          t.Description(),
			ParameterDefinitions: parameterDefinitions(t.Parameters()),
		})
	}
	if in.JSONMode {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}
	return req, nil
}

func convertMessages(req *Request, msgs []schema.Message) error {
	// 开头的 system 消息合并为 preamble
	var preamble []string
	for len(msgs) > 0 && msgs[0].Role == schema.RoleSystem {
		if !msgs[0].TextOnly() {
			return ErrMultimodal
		}
		preamble = append(preamble, msgs[0].Text())
		msgs = msgs[1:]
	}
	req.Preamble = strings.Join(preamble, "\n\n")

	// 末尾的工具结果作为 tool_results 发送
	tail := len(msgs)
	for tail > 0 && len(msgs[tail-1].ToolResults()) > 0 {
		tail--
	}
	history, trailing := msgs[:tail], msgs[tail:]
	if len(trailing) == 0 {
		if len(history) == 0 || history[len(history)-1].Role != schema.RoleUser {
			return errors.New("conversation must end with a user message or tool results")
		}
		last := history[len(history)-1]
		if !last.TextOnly() {
			return ErrMultimodal
		}
		req.Message = last.Text()
		history = history[:len(history)-1]
	}

	calls := map[string]schema.ToolCall{}
	for _, m := range history {
		cm, err := chatMessage(m, calls)
		if err != nil {
			return err
		}
		req.ChatHistory = append(req.ChatHistory, cm)
	}
	for _, m := range trailing {
		req.ToolResults = append(req.ToolResults, toolResults(m, calls)...)
	}
	return nil
}

func chatMessage(m schema.Message, calls map[string]schema.ToolCall) (ChatMessage, error) {
	switch m.Role {
	case schema.RoleAssistant:
		tcs := m.ToolCalls()
		for _, tc := range tcs {
			calls[tc.ID] = tc
		}
		return chatbotMessage(m.Text(), tcs), nil
	case schema.RoleTool:
		return ChatMessage{Role: "TOOL", ToolResults: toolResults(m, calls)}, nil
	case schema.RoleUser, schema.RoleSystem:
		if results := m.ToolResults(); len(results) > 0 {
			return ChatMessage{Role: "TOOL", ToolResults: toolResults(m, calls)}, nil
		}
		if !m.TextOnly() {
			return ChatMessage{}, ErrMultimodal
		}
		return ChatMessage{Role: strings.ToUpper(string(m.Role)), Message: m.Text()}, nil
	default:
		return ChatMessage{}, fmt.Errorf("unsupported role %q", m.Role)
	}
}

// toolResults 通过调用 ID 找回原始调用，Cohere 需要同时回传调用与输出
func toolResults(m schema.Message, calls map[string]schema.ToolCall) []ToolResult {
	var out []ToolResult
	for _, r := range m.ToolResults() {
		call := Call{Name: r.Name, Parameters: json.RawMessage(`{}`)}
		if tc, ok := calls[r.ID]; ok {
			call = toCall(tc)
		}
		out = append(out, ToolResult{Call: call, Outputs: []map[string]any{{"result": r.Value}}})
	}
	return out
}

func toCall(tc schema.ToolCall) Call {
	params := json.RawMessage(tc.Arguments)
	if !gjson.Valid(tc.Arguments) {
		params = json.RawMessage(`{}`)
	}
	return Call{Name: tc.Name, Parameters: params}
}

func chatbotMessage(content string, calls []schema.ToolCall) ChatMessage {
	m := ChatMessage{Role: "CHATBOT", Message: content}
	for _, tc := range calls {
		m.ToolCalls = append(m.ToolCalls, toCall(tc))
	}
	return m
}

var cohereTypes = map[string]string{
	"string":  "str",
	"integer": "int",
	"number":  "float",
	"boolean": "bool",
	"array":   "list",
	"object":  "dict",
}

func parameterDefinitions(params map[string]any) map[string]ParameterDef {
	props, _ := params["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}
	required := map[string]bool{}
	switch req := params["required"].(type) {
	case []string:
		for _, r := range req {
			required[r] = true
		}
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	out := make(map[string]ParameterDef, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		ct, ok := cohereTypes[typ]
		if !ok {
			ct = "str"
		}
		out[name] = ParameterDef{Description: desc, Type: ct, Required: required[name]}
	}
	return out
}
