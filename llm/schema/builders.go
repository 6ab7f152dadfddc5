package schema

import "encoding/base64"

// TextPart 创建文本内容片段
func TextPart(text string) ContentPart {
	return TextContent{Text: text}
}

// ImagePart 创建图片内容片段
func ImagePart(mimeType string, data []byte) ContentPart {
	return ImageContent{MIMEType: mimeType, Data: data}
}

// ToolCallPart 创建工具调用片段
func ToolCallPart(id, name, arguments string) ContentPart {
	return ToolCallContent{ToolCall: ToolCall{ID: id, Name: name, Arguments: arguments}}
}

// ToolResultPart 创建工具结果片段
func ToolResultPart(id, name, value string) ContentPart {
	return ToolResultContent{ID: id, Name: name, Value: value}
}

// SystemMessage 创建系统消息
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(content)}}
}

// UserMessage 创建用户消息
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(content)}}
}

// UserMessageParts 创建多模态用户消息
func UserMessageParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Content: parts}
}

// AssistantMessage 创建助手消息
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(content)}}
}

// AssistantToolCallMessage 创建携带工具调用的助手消息；content 为空时省略文本片段
func AssistantToolCallMessage(content string, calls ...ToolCall) Message {
	parts := make([]ContentPart, 0, len(calls)+1)
	if content != "" {
		parts = append(parts, TextPart(content))
	}
	for _, c := range calls {
		parts = append(parts, ToolCallContent{ToolCall: c})
	}
	return Message{Role: RoleAssistant, Content: parts}
}

// ToolResultMessage 创建工具调用结果消息
func ToolResultMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, Content: []ContentPart{ToolResultPart(toolCallID, name, content)}}
}

// DataURL 将图片片段编码为 data URL
func (c ImageContent) DataURL() string {
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}
