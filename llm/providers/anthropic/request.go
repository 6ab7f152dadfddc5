package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// Request 是 /v1/messages 的请求体；Extra 中的调用参数在序列化时覆盖同名字段
type Request struct {
	Model      string         `json:"model"`
	MaxTokens  int            `json:"max_tokens"`
	System     string         `json:"system,omitempty"`
	Messages   []Message      `json:"messages"`
	Tools      []Tool         `json:"tools,omitempty"`
	ToolChoice map[string]any `json:"tool_choice,omitempty"`
	Stream     bool           `json:"stream,omitempty"`

	Extra map[string]any `json:"-"`
}

// Message 是 Anthropic 线格式的一条消息，也是助手消息参数的类型
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type string `json:"type"`

	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
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
	system, msgs, err := convertMessages(in.Messages)
	if err != nil {
		return nil, err
	}
	req := &Request{
		MaxTokens: DefaultMaxTokens,
		System:    system,
		Messages:  msgs,
		Extra:     map[string]any(in.Params.Clone()),
		Stream:    in.Stream,
	}
	if len(in.Tools) > 0 {
		req.Tools = make([]Tool, 0, len(in.Tools))
		for _, t := range in.Tools {
			req.Tools = append(req.Tools, Tool{
				Name:        t.Name(),
				Description: t.Description(),
				InputSchema: t.Parameters(),
			})
		}
		req.ToolChoice = map[string]any{"type": "auto"}
	}
	return req, nil
}

// convertMessages 抽出 system 文本，tool 角色转为 user 角色的 tool_result，相邻同角色消息合并
func convertMessages(in []schema.Message) (string, []Message, error) {
	var (
		system []string
		out    []Message
	)
	for _, m := range in {
		var (
			role   string
			blocks []ContentBlock
		)
		switch m.Role {
		case schema.RoleSystem:
			system = append(system, m.Text())
			continue
		case schema.RoleUser, schema.RoleTool:
			role = "user"
		case schema.RoleAssistant:
			role = "assistant"
		default:
			return "", nil, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}

		for _, part := range m.Content {
			switch v := part.(type) {
			case schema.TextContent:
				blocks = append(blocks, ContentBlock{Type: "text", Text: v.Text})
			case schema.ImageContent:
				blocks = append(blocks, ContentBlock{Type: "image", Source: &ImageSource{
					Type:      "base64",
					MediaType: v.MIMEType,
					Data:      base64.StdEncoding.EncodeToString(v.Data),
				}})
			case schema.ToolCallContent:
				blocks = append(blocks, toolUseBlock(v.ToolCall))
			case schema.ToolResultContent:
				blocks = append(blocks, ContentBlock{Type: "tool_result", ToolUseID: v.ID, Content: v.Value})
			}
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, Message{Role: role, Content: blocks})
	}
	return strings.Join(system, "\n\n"), out, nil
}

func toolUseBlock(tc schema.ToolCall) ContentBlock {
	input := json.RawMessage(tc.Arguments)
	if !gjson.Valid(tc.Arguments) {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input}
}

func assistantMessage(content string, calls []schema.ToolCall) Message {
	m := Message{Role: "assistant"}
	if content != "" {
		m.Content = append(m.Content, ContentBlock{Type: "text", Text: content})
	}
	for _, tc := range calls {
		m.Content = append(m.Content, toolUseBlock(tc))
	}
	return m
}
