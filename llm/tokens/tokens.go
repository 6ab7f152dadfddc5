// Package tokens estimates prompt sizes with OpenAI's BPE encodings.
//
// Counts for non-OpenAI models are approximations: they use cl100k_base.
package tokens

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// FallbackEncoding 未知模型使用的编码
const FallbackEncoding = "cl100k_base"

// 每条消息的固定开销与回复的引导 token，取自 OpenAI chat 格式
const (
	perMessage = 3
	perName    = 1
	replyPrime = 3
)

type encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// Counter 按模型选择编码并计数
type Counter struct {
	model    string
	encoding string
	enc      encoder
}

// ForModel 返回模型对应的计数器，未知模型回退到 cl100k_base
func ForModel(model string) (*Counter, error) {
	name := EncodingName(model)
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("tokens: load encoding %s: %w", name, err)
	}
	return &Counter{model: model, encoding: name, enc: enc}, nil
}

// EncodingName 返回模型使用的编码名
func EncodingName(model string) string {
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return name
	}
	for prefix, name := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(model, prefix) {
			return name
		}
	}
	return FallbackEncoding
}

func (c *Counter) Model() string    { return c.model }
func (c *Counter) Encoding() string { return c.encoding }

// Count 返回文本的 token 数
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountMessages 估算一组消息作为 chat 请求输入时的 token 数
//
// 图片不计入；工具调用按名称与参数文本计数
func (c *Counter) CountMessages(msgs []schema.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	n := replyPrime
	for _, m := range msgs {
		n += perMessage + c.Count(string(m.Role)) + c.Count(m.Text())
		for _, tc := range m.ToolCalls() {
			n += perName + c.Count(tc.Name) + c.Count(tc.Arguments)
		}
		for _, tr := range m.ToolResults() {
			n += c.Count(tr.Value)
		}
	}
	return n
}
