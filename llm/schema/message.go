package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Role 表示消息在对话中的角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid 判断角色是否属于固定角色集合
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

var (
	// ErrEmptyContent 消息内容为空
	ErrEmptyContent = errors.New("schema: message content is empty")
	// ErrInvalidRole 角色不在固定集合中
	ErrInvalidRole = errors.New("schema: invalid message role")
)

// Message 是与 provider 无关的对话消息
//
// Content 至少包含一个内容片段；创建后视为不可变
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart 是消息内容片段的标签联合类型
type ContentPart interface {
	isPart()
	// Type 返回片段的类型标签
	Type() string
}

// TextContent 文本片段
type TextContent struct {
	Text string
}

func (TextContent) isPart()      {}
func (TextContent) Type() string { return "text" }

// ImageContent 图片片段，Data 为原始字节，MIMEType 如 image/png
type ImageContent struct {
	Data     []byte
	MIMEType string
}

func (ImageContent) isPart()      {}
func (ImageContent) Type() string { return "image" }

// ToolCallContent 助手发起的工具调用
type ToolCallContent struct {
	ToolCall
}

func (ToolCallContent) isPart()      {}
func (ToolCallContent) Type() string { return "tool_call" }

// ToolResultContent 工具执行结果，ID 对应发起调用的 ToolCall.ID
type ToolResultContent struct {
	ID    string
	Name  string
	Value string
}

func (ToolResultContent) isPart()      {}
func (ToolResultContent) Type() string { return "tool_result" }

// Validate 检查消息是否满足不变量：角色合法且内容非空
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}
	if len(m.Content) == 0 {
		return fmt.Errorf("%w (role %s)", ErrEmptyContent, m.Role)
	}
	return nil
}

// Text returns the concatenated plain text of all text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if tp, ok := p.(TextContent); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// ToolCalls 返回消息中的全部工具调用，保持原有顺序
func (m Message) ToolCalls() []ToolCall {
	var out []ToolCall
	for _, p := range m.Content {
		if tc, ok := p.(ToolCallContent); ok {
			out = append(out, tc.ToolCall)
		}
	}
	return out
}

// ToolResults 返回消息中的全部工具结果
func (m Message) ToolResults() []ToolResultContent {
	var out []ToolResultContent
	for _, p := range m.Content {
		if tr, ok := p.(ToolResultContent); ok {
			out = append(out, tr)
		}
	}
	return out
}

// TextOnly 判断消息是否只包含文本片段
func (m Message) TextOnly() bool {
	for _, p := range m.Content {
		if _, ok := p.(TextContent); !ok {
			return false
		}
	}
	return true
}

// LastUserMessage 返回序列中最后一条用户消息
func LastUserMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}
