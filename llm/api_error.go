package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind 是 APIError 的粗粒度分类
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidRequest
	KindAuth
	KindNotFound
	KindRateLimit
	KindOverloaded
	KindServer
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	case KindOverloaded:
		return "overloaded"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// 各家在错误信封里使用的限流 / 过载标识
var (
	rateLimitCodes  = []string{"rate_limit", "rate_limit_exceeded", "rate_limit_error", "resource_exhausted", "too_many_requests"}
	overloadedCodes = []string{"overloaded_error", "overloaded", "unavailable"}
)

// APIError 是手写 HTTP 适配器（Anthropic、Gemini、Vertex、Cohere）收到的非 2xx 响应
//
// 库内不重试；调用方据 Kind / Retryable / RetryAfter 决定
type APIError struct {
	Provider   string
	StatusCode int

	// Code、Type 取自 provider 的错误信封，可能为空
	Code string
	Type string

	Message   string
	RequestID string

	// RetryAfter 来自 Retry-After 头，未提供时为 0
	RetryAfter time.Duration

	Raw []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	if e.Provider != "" {
		fmt.Fprintf(&b, "%s: ", e.Provider)
	}
	fmt.Fprintf(&b, "http %d", e.StatusCode)

	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	if tag := e.tag(); tag != "" {
		fmt.Fprintf(&b, " (%s)", tag)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	return b.String()
}

func (e *APIError) tag() string {
	if c := strings.TrimSpace(e.Code); c != "" {
		return c
	}
	return strings.TrimSpace(e.Type)
}

// Kind 先按错误码 / 类型分类，再退回到状态码
func (e *APIError) Kind() ErrorKind {
	if e == nil {
		return KindUnknown
	}
	for _, s := range []string{e.Code, e.Type} {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if matchesAny(s, rateLimitCodes) {
			return KindRateLimit
		}
		if matchesAny(s, overloadedCodes) {
			return KindOverloaded
		}
	}

	switch code := e.StatusCode; {
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == 529:
		return KindOverloaded
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// Retryable 报告相同请求稍后重发是否可能成功
func (e *APIError) Retryable() bool {
	switch e.Kind() {
	case KindRateLimit, KindOverloaded, KindServer, KindTimeout:
		return true
	default:
		return false
	}
}

func matchesAny(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// AsAPIError 在错误链中查找 *APIError
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func errorKind(err error) ErrorKind {
	ae, ok := AsAPIError(err)
	if !ok {
		return KindUnknown
	}
	return ae.Kind()
}

func IsRateLimit(err error) bool { return errorKind(err) == KindRateLimit }

func IsAuth(err error) bool { return errorKind(err) == KindAuth }

// IsTemporary 限流、过载、5xx 与超时
func IsTemporary(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.Retryable()
}
