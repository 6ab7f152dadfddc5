package schema

import (
	"encoding/json"
	"fmt"
)

// wirePart 是内容片段的 JSON 表示，按 type 字段区分
type wirePart struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Data      []byte `json:"data,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Value     string `json:"value,omitempty"`
}

type wireMessage struct {
	Role    Role       `json:"role"`
	Content []wirePart `json:"content"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := wireMessage{Role: m.Role, Content: make([]wirePart, 0, len(m.Content))}
	for _, p := range m.Content {
		switch v := p.(type) {
		case TextContent:
			out.Content = append(out.Content, wirePart{Type: v.Type(), Text: v.Text})
		case ImageContent:
			out.Content = append(out.Content, wirePart{Type: v.Type(), Data: v.Data, MIMEType: v.MIMEType})
		case ToolCallContent:
			out.Content = append(out.Content, wirePart{Type: v.Type(), ID: v.ID, Name: v.Name, Arguments: v.Arguments})
		case ToolResultContent:
			out.Content = append(out.Content, wirePart{Type: v.Type(), ID: v.ID, Name: v.Name, Value: v.Value})
		default:
			return nil, fmt.Errorf("schema: unsupported content part %T", p)
		}
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var in wireMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parts := make([]ContentPart, 0, len(in.Content))
	for _, p := range in.Content {
		switch p.Type {
		case "text":
			parts = append(parts, TextContent{Text: p.Text})
		case "image":
			parts = append(parts, ImageContent{Data: p.Data, MIMEType: p.MIMEType})
		case "tool_call":
			parts = append(parts, ToolCallPart(p.ID, p.Name, p.Arguments))
		case "tool_result":
			parts = append(parts, ToolResultContent{ID: p.ID, Name: p.Name, Value: p.Value})
		default:
			return fmt.Errorf("schema: unknown content part type %q", p.Type)
		}
	}
	m.Role = in.Role
	m.Content = parts
	return nil
}
