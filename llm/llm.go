package llm

import (
	"context"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// Provider is the capability set one vendor integration implements.
//
// BuildRequest translates canonical input into the vendor's wire request,
// Create and Stream dispatch it, MessageParam rebuilds the vendor's assistant
// turn from streamed pieces and Cost prices token usage.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	BuildRequest(in CallInput) (Request, error)
	Create(ctx context.Context, d Dispatch) (Response, error)
	Stream(ctx context.Context, d Dispatch) (ChunkReader, error)
	MessageParam(content string, calls []schema.ToolCall) any
	Cost(model string, usage *schema.Usage) *float64
}

// Capabilities describes the structured-output paths a provider offers.
type Capabilities struct {
	Tools    bool
	JSONMode bool
}

// CallInput is everything a provider needs to build one wire request.
type CallInput struct {
	Messages []schema.Message
	Tools    []ToolSpec
	Params   CallParams
	JSONMode bool
	Stream   bool
}

// Request is a provider-specific wire request.
//
// JSON renders the body that will be sent, for logging and inspection.
type Request interface {
	JSON() ([]byte, error)
}

// Dispatch carries a built request to the provider's transport. Client is the
// optional per-call client override; nil selects the provider's default.
type Dispatch struct {
	Client  any
	Model   string
	Request Request
}

// Response is one raw, non-streamed provider response behind uniform
// accessors. Implementations must treat the payload as immutable.
type Response interface {
	ID() string
	Model() string
	// Content 返回文本内容，没有文本时返回空字符串
	Content() string
	FinishReasons() []string
	// Usage 在 provider 未返回用量时为 nil
	Usage() *schema.Usage
	RawToolCalls() []schema.ToolCall
	// MessageParam 返回 provider 线格式的助手消息，可直接作为历史回传给该 provider
	MessageParam() any
	Raw() any
}

// Chunk is one raw streamed increment. Content is the delta only.
type Chunk interface {
	ID() string
	Model() string
	Content() string
	FinishReasons() []string
	Usage() *schema.Usage
	ToolCallDeltas() []ToolCallDelta
	Raw() any
}

// ToolCallDelta is one tool-call fragment keyed by a provider-issued index.
//
// A non-empty ID starts a new call at Index. A delta without ID continues the
// open call at Index. Done marks the call at Index as complete.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
	Done      bool
}

// ChunkReader is a forward-only reader over raw chunks.
//
// Recv returns io.EOF when the provider ends the stream normally.
type ChunkReader interface {
	Recv() (Chunk, error)
	Close() error
}
