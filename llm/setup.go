package llm

import (
	"context"
	"slices"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// PromptFunc produces the prompt for one call from its arguments.
//
// It returns Messages, a *DynamicConfig, or nil to render the declared
// template (WithPrompt) against args.
type PromptFunc[A any] func(ctx context.Context, args A) (Prompt, error)

// setupCall 是与 provider 无关的 setup 部分：解析提示函数返回值、规范化工具、合并调用参数，
// 然后交给 provider 生成线格式请求
func setupCall(d *declaration, args any, ret Prompt, stream bool) (*callContext, Dispatch, error) {
	cfg := &d.cfg
	var msgs []schema.Message
	params := cfg.Params.Clone()
	tools, client, metadata := cfg.Tools, cfg.Client, cfg.Metadata
	scope := args

	switch r := ret.(type) {
	case nil:
	case Messages:
		msgs = slices.Clone(r)
	case *DynamicConfig:
		if r == nil {
			break
		}
		msgs = slices.Clone(r.Messages)
		params = params.Merge(r.CallParams)
		metadata = metadata.Merge(r.Metadata)
		if r.Client != nil {
			client = r.Client
		}
		if r.Tools != nil {
			tools = r.Tools
		}
		if len(r.ComputedFields) > 0 {
			scope = scopeChain{r.ComputedFields, args}
		}
	}

	if len(msgs) == 0 {
		if cfg.Prompt == "" {
			return nil, Dispatch{}, configErrorf("prompt function returned no messages and no prompt template is declared")
		}
		rendered, err := RenderMessages(cfg.Prompt, scope)
		if err != nil {
			return nil, Dispatch{}, err
		}
		msgs = rendered
	}
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return nil, Dispatch{}, err
		}
	}

	if cfg.ResponseModel != nil {
		if d.jsonMode {
			tools = nil
			instruction, err := cfg.ResponseModel.jsonInstruction()
			if err != nil {
				return nil, Dispatch{}, err
			}
			msgs = appendToLastUser(msgs, instruction)
		} else {
			tools = []ToolSpec{cfg.ResponseModel.tool}
		}
	}
	if err := checkToolNames(tools); err != nil {
		return nil, Dispatch{}, err
	}

	call := &callContext{
		provider: d.provider,
		model:    d.model,
		prompt:   cfg.Prompt,
		messages: msgs,
		tools:    tools,
		params:   params,
		metadata: metadata,
		logger:   cfg.Logger,
	}

	req, err := d.provider.BuildRequest(CallInput{
		Messages: msgs,
		Tools:    tools,
		Params:   params,
		JSONMode: d.jsonMode && d.provider.Capabilities().JSONMode,
		Stream:   stream,
	})
	if err != nil {
		return nil, Dispatch{}, err
	}
	return call, Dispatch{Client: client, Model: d.model, Request: req}, nil
}

// appendToLastUser 在最后一条用户消息末尾追加文本片段，没有用户消息时追加一条
func appendToLastUser(msgs []schema.Message, text string) []schema.Message {
	out := slices.Clone(msgs)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == schema.RoleUser {
			parts := slices.Clone(out[i].Content)
			out[i] = schema.Message{Role: schema.RoleUser, Content: append(parts, schema.TextPart("\n\n"+text))}
			return out
		}
	}
	return append(out, schema.UserMessage(text))
}

func checkToolNames(tools []ToolSpec) error {
	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		if t == nil {
			return configErrorf("nil tool")
		}
		if seen[t.Name()] {
			return configErrorf("duplicate tool name %q", t.Name())
		}
		seen[t.Name()] = true
	}
	return nil
}
