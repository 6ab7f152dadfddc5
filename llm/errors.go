package llm

import (
	"errors"
	"fmt"
)

// ErrNoStructuredOutput 响应中既没有工具调用也没有 JSON 对象
var ErrNoStructuredOutput = errors.New("llm: no tool call or JSON object found in response")

// ConfigurationError 表示调用声明本身自相矛盾或不完整
//
// 在声明阶段（Decorate / Call / Extract 等）立即返回，不会触发任何网络请求
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "llm: invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError 判断错误链中是否包含 ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ToolArgumentError 表示非流式响应中工具调用的参数 JSON 无法解析
type ToolArgumentError struct {
	Tool      string
	ID        string
	Arguments string
	Cause     error
}

func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("llm: tool %q (call %s): invalid arguments %q: %v", e.Tool, e.ID, e.Arguments, e.Cause)
}

func (e *ToolArgumentError) Unwrap() error { return e.Cause }

// IncompleteStreamError 表示在流完全消费之前读取了累加结果
type IncompleteStreamError struct {
	Field string
}

func (e *IncompleteStreamError) Error() string {
	return fmt.Sprintf("llm: %s is only available after the stream is fully consumed", e.Field)
}
