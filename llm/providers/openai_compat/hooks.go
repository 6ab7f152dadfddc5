package openai_compat

import "github.com/skylarbpayne/mirascope/llm"

// Hooks 是兼容 OpenAI 协议的厂商处理差异的扩展点
type Hooks struct {
	// BeforeBuild 在映射前修改调用参数，例如去掉厂商不支持的字段
	BeforeBuild func(params llm.CallParams)

	// PatchRequest 修改最终请求中额外写入的 JSON 字段
	PatchRequest func(extra map[string]any)
}

func WithHooks(h Hooks) Option {
	return func(p *Provider) error {
		prev := p.hooks
		p.hooks.BeforeBuild = chain(prev.BeforeBuild, h.BeforeBuild)
		p.hooks.PatchRequest = chain(prev.PatchRequest, h.PatchRequest)
		return nil
	}
}

// WithDefaultParams 为每次调用补充默认参数，调用方显式传入的同名参数优先
func WithDefaultParams(defaults llm.CallParams) Option {
	return WithHooks(Hooks{
		BeforeBuild: func(params llm.CallParams) {
			for k, v := range defaults {
				if _, ok := params[k]; !ok {
					params[k] = v
				}
			}
		},
	})
}

func chain[T any](a, b func(T)) func(T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}
