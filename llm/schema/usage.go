package schema

// Usage 表示 token 使用统计
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total 返回输入与输出 token 之和
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}
