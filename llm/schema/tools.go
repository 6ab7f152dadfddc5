package schema

// ToolCall 是一次工具调用：ID 由 provider 分配（或在缺失时合成），Arguments 为原始 JSON 字符串
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
