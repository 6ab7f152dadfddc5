package transport

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/skylarbpayne/mirascope/llm"
)

// newAPIError 解析常见的错误信封：
// OpenAI / Anthropic {"error":{"message","type","code"}}，Gemini {"error":{"message","status","code"}}，
// Cohere {"message": "..."}
func newAPIError(provider string, status int, hdr http.Header, raw []byte) *llm.APIError {
	ae := &llm.APIError{
		Provider:   provider,
		StatusCode: status,
		Raw:        append([]byte(nil), raw...),
		RequestID:  firstHeader(hdr, "X-Request-Id", "Request-Id", "X-Goog-Request-Id"),
		RetryAfter: retryAfter(hdr.Get("Retry-After")),
	}

	if gjson.ValidBytes(raw) {
		env := gjson.ParseBytes(raw)
		if e := env.Get("error"); e.IsObject() {
			ae.Message = e.Get("message").String()
			ae.Type = e.Get("type").String()
			ae.Code = e.Get("code").String()
			if status := e.Get("status"); status.Exists() {
				ae.Code = status.String()
			}
		} else if e.Type == gjson.String {
			ae.Message = e.String()
		}
		if ae.Message == "" {
			ae.Message = env.Get("message").String()
		}
		if ae.Type == "" {
			ae.Type = env.Get("type").String()
		}
	} else {
		ae.Message = strings.TrimSpace(string(raw))
	}
	return ae
}

func firstHeader(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func retryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
