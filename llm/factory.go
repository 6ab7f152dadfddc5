package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Mode is the execution mode a call declaration resolves to.
type Mode int

const (
	ModeCall Mode = iota
	ModeParsedCall
	ModeStream
	ModeExtract
	ModeStructuredStream
)

func (m Mode) String() string {
	switch m {
	case ModeCall:
		return "call"
	case ModeParsedCall:
		return "parsed_call"
	case ModeStream:
		return "stream"
	case ModeExtract:
		return "extract"
	case ModeStructuredStream:
		return "structured_stream"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ResolveMode 按声明选项求出执行模式
//
//	response_model | stream | output_parser | mode
//	absent         | false  | absent        | ModeCall
//	absent         | false  | present       | ModeParsedCall
//	absent         | true   | absent        | ModeStream
//	present        | false  | absent        | ModeExtract
//	present        | true   | absent        | ModeStructuredStream
//
// stream 与 output_parser 同时设置，或 response_model 与 output_parser 同时设置时返回 *ConfigurationError
func ResolveMode(cfg CallConfig) (Mode, error) {
	hasModel := cfg.ResponseModel != nil
	hasParser := cfg.OutputParser != nil
	switch {
	case cfg.Stream && hasParser:
		return 0, configErrorf("output_parser cannot be combined with stream")
	case hasModel && hasParser:
		return 0, configErrorf("output_parser cannot be combined with response_model")
	case hasModel && cfg.Stream:
		return ModeStructuredStream, nil
	case hasModel:
		return ModeExtract, nil
	case cfg.Stream:
		return ModeStream, nil
	case hasParser:
		return ModeParsedCall, nil
	default:
		return ModeCall, nil
	}
}

// CallFunc is a declared call bound to one provider, model and mode.
type CallFunc[A, R any] func(ctx context.Context, args A) (R, error)

// Result is the outcome of an asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Async 在一个 goroutine 中执行调用，结果通过 channel 交付一次后关闭
func (f CallFunc[A, R]) Async(ctx context.Context, args A) <-chan Result[R] {
	ch := make(chan Result[R], 1)
	go func() {
		defer close(ch)
		v, err := f(ctx, args)
		ch <- Result[R]{Value: v, Err: err}
	}()
	return ch
}

// declaration 是在声明阶段求值一次的调用配置
type declaration struct {
	provider Provider
	model    string
	cfg      CallConfig
	mode     Mode
	jsonMode bool
}

func declare(p Provider, model string, hasFn bool, opts []CallOption) (*declaration, error) {
	if p == nil {
		return nil, configErrorf("provider is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, configErrorf("model is required")
	}
	cfg := ApplyCallOptions(opts...)
	if !hasFn && strings.TrimSpace(cfg.Prompt) == "" {
		return nil, configErrorf("a prompt function or a prompt template is required")
	}
	mode, err := ResolveMode(cfg)
	if err != nil {
		return nil, err
	}

	d := &declaration{provider: p, model: model, cfg: cfg, mode: mode, jsonMode: cfg.JSONMode}
	if cfg.ResponseModel != nil {
		if err := cfg.ResponseModel.validate(); err != nil {
			return nil, err
		}
		caps := p.Capabilities()
		if !caps.Tools && !caps.JSONMode {
			return nil, configErrorf("provider %s supports neither tool calling nor JSON mode, cannot extract %s", p.Name(), cfg.ResponseModel.typ)
		}
		if !caps.Tools {
			d.jsonMode = true
		}
	}
	return d, nil
}

func prepare[A any](ctx context.Context, d *declaration, fn PromptFunc[A], args A, stream bool) (*callContext, Dispatch, error) {
	var ret Prompt
	if fn != nil {
		var err error
		if ret, err = fn(ctx, args); err != nil {
			return nil, Dispatch{}, err
		}
	}
	call, dispatch, err := setupCall(d, args, ret, stream)
	if err != nil {
		return nil, Dispatch{}, err
	}
	d.cfg.Logger.Debug("llm call", "provider", d.provider.Name(), "model", d.model, "mode", d.mode.String(), "tools", len(call.tools))
	return call, dispatch, nil
}

func create[A any](ctx context.Context, d *declaration, fn PromptFunc[A], args A) (*CallResponse, error) {
	call, dispatch, err := prepare(ctx, d, fn, args, false)
	if err != nil {
		return nil, err
	}
	resp, err := d.provider.Create(ctx, dispatch)
	if err != nil {
		return nil, err
	}
	return newCallResponse(resp, call), nil
}

func openStream[A any](ctx context.Context, d *declaration, fn PromptFunc[A], args A) (*callContext, ChunkReader, error) {
	call, dispatch, err := prepare(ctx, d, fn, args, true)
	if err != nil {
		return nil, nil, err
	}
	reader, err := d.provider.Stream(ctx, dispatch)
	if err != nil {
		return nil, nil, err
	}
	return call, reader, nil
}

func expectMode(d *declaration, want Mode, entry string) error {
	if d.mode != want {
		return configErrorf("%s declares a %s call but the options resolve to %s", entry, want, d.mode)
	}
	return nil
}

// Call 声明一个普通调用，返回 *CallResponse
func Call[A any](p Provider, model string, fn PromptFunc[A], opts ...CallOption) (CallFunc[A, *CallResponse], error) {
	d, err := declare(p, model, fn != nil, opts)
	if err != nil {
		return nil, err
	}
	if err := expectMode(d, ModeCall, "Call"); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args A) (*CallResponse, error) {
		return create(ctx, d, fn, args)
	}, nil
}

// CallWithParser 声明一个普通调用，并用 parser 处理 CallResponse
func CallWithParser[A, T any](p Provider, model string, fn PromptFunc[A], parser func(*CallResponse) (T, error), opts ...CallOption) (CallFunc[A, T], error) {
	if parser == nil {
		return nil, configErrorf("CallWithParser requires a parser")
	}
	opts = append(slices.Clip(opts), WithOutputParser(func(r *CallResponse) (any, error) { return parser(r) }))
	d, err := declare(p, model, fn != nil, opts)
	if err != nil {
		return nil, err
	}
	if err := expectMode(d, ModeParsedCall, "CallWithParser"); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args A) (T, error) {
		var zero T
		resp, err := create(ctx, d, fn, args)
		if err != nil {
			return zero, err
		}
		return parser(resp)
	}, nil
}

// StreamCall 声明一个流式调用，返回 *Stream
func StreamCall[A any](p Provider, model string, fn PromptFunc[A], opts ...CallOption) (CallFunc[A, *Stream], error) {
	d, err := declare(p, model, fn != nil, append(slices.Clip(opts), WithStream()))
	if err != nil {
		return nil, err
	}
	if err := expectMode(d, ModeStream, "StreamCall"); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args A) (*Stream, error) {
		call, reader, err := openStream(ctx, d, fn, args)
		if err != nil {
			return nil, err
		}
		return newStream(reader, call), nil
	}, nil
}

// Extract 声明一个结构化抽取调用，返回 T
//
// T 嵌入 ExtractedModel 时可通过 Response() 访问产生它的响应
func Extract[A, T any](p Provider, model string, fn PromptFunc[A], opts ...CallOption) (CallFunc[A, T], error) {
	d, err := declare(p, model, fn != nil, append(slices.Clip(opts), WithResponseModel(ResponseModelOf[T]())))
	if err != nil {
		return nil, err
	}
	if err := expectMode(d, ModeExtract, "Extract"); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args A) (T, error) {
		var zero T
		resp, err := create(ctx, d, fn, args)
		if err != nil {
			return zero, err
		}
		v, err := extractValue(d.cfg.ResponseModel, resp, d.jsonMode)
		if err != nil {
			return zero, err
		}
		return v.(T), nil
	}, nil
}

// ExtractStream 声明一个结构化流式抽取调用
func ExtractStream[A, T any](p Provider, model string, fn PromptFunc[A], opts ...CallOption) (CallFunc[A, *StructuredStream[T]], error) {
	d, err := declare(p, model, fn != nil, append(slices.Clip(opts), WithStream(), WithResponseModel(ResponseModelOf[T]())))
	if err != nil {
		return nil, err
	}
	if err := expectMode(d, ModeStructuredStream, "ExtractStream"); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args A) (*StructuredStream[T], error) {
		call, reader, err := openStream(ctx, d, fn, args)
		if err != nil {
			return nil, err
		}
		return newStructuredStream[T](reader, call, d.cfg.ResponseModel, d.jsonMode), nil
	}, nil
}

// Decorate 按选项动态选择执行模式，返回值类型随模式变化：
// *CallResponse、parser 的结果、*Stream、抽取值或 *StructuredStream[any]
func Decorate[A any](p Provider, model string, fn PromptFunc[A], opts ...CallOption) (CallFunc[A, any], error) {
	d, err := declare(p, model, fn != nil, opts)
	if err != nil {
		return nil, err
	}
	switch d.mode {
	case ModeCall:
		return func(ctx context.Context, args A) (any, error) {
			return create(ctx, d, fn, args)
		}, nil
	case ModeParsedCall:
		return func(ctx context.Context, args A) (any, error) {
			resp, err := create(ctx, d, fn, args)
			if err != nil {
				return nil, err
			}
			return d.cfg.OutputParser(resp)
		}, nil
	case ModeStream:
		return func(ctx context.Context, args A) (any, error) {
			call, reader, err := openStream(ctx, d, fn, args)
			if err != nil {
				return nil, err
			}
			return newStream(reader, call), nil
		}, nil
	case ModeExtract:
		return func(ctx context.Context, args A) (any, error) {
			resp, err := create(ctx, d, fn, args)
			if err != nil {
				return nil, err
			}
			return extractValue(d.cfg.ResponseModel, resp, d.jsonMode)
		}, nil
	default:
		return func(ctx context.Context, args A) (any, error) {
			call, reader, err := openStream(ctx, d, fn, args)
			if err != nil {
				return nil, err
			}
			return newStructuredStream[any](reader, call, d.cfg.ResponseModel, d.jsonMode), nil
		}, nil
	}
}
