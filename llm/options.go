package llm

import (
	"io"
	"log/slog"
	"maps"
	"slices"
)

// CallParams 是 provider 选项名到取值的映射，如 "temperature"、"max_tokens"
//
// 键名按 provider 的线格式命名，由各 provider 原样写入请求体
type CallParams map[string]any

// Merge 返回 p 与 override 的合并结果：override 中的键整体替换 p 中同名键，不做深度合并
func (p CallParams) Merge(override CallParams) CallParams {
	out := make(CallParams, len(p)+len(override))
	maps.Copy(out, p)
	maps.Copy(out, override)
	return out
}

// Clone 返回浅拷贝
func (p CallParams) Clone() CallParams {
	if p == nil {
		return CallParams{}
	}
	return maps.Clone(p)
}

// Metadata 调用的元数据，Tags 为去重后的有序集合
type Metadata struct {
	Tags []string `json:"tags,omitempty"`
}

// NewMetadata 创建元数据，tags 去重并排序
func NewMetadata(tags ...string) Metadata {
	return Metadata{Tags: normalizeTags(tags)}
}

// Merge 合并两组元数据的标签
func (m Metadata) Merge(other Metadata) Metadata {
	return Metadata{Tags: normalizeTags(append(slices.Clone(m.Tags), other.Tags...))}
}

// HasTag 判断是否包含指定标签
func (m Metadata) HasTag(tag string) bool {
	_, found := slices.BinarySearch(m.Tags, tag)
	return found
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CallOption 是声明调用时的可选参数函数类型
type CallOption func(*CallConfig)

// CallConfig 表示一次调用声明的配置，在声明阶段求值一次
type CallConfig struct {
	// === 提示词 ===

	// Prompt 提示词模板，支持 {name} 与 {a.b} 占位符以及 SYSTEM:/USER:/ASSISTANT: 角色标记
	//
	// 当提示函数为 nil 或返回 nil / 不含 Messages 的 DynamicConfig 时使用
	Prompt string

	// === 请求参数 ===

	// Params 默认调用参数，可被 DynamicConfig.CallParams 按键覆盖
	Params CallParams

	// Tools 模型可调用的工具
	Tools []ToolSpec

	// JSONMode 要求 provider 输出 JSON
	JSONMode bool

	// Client 覆盖 provider 默认客户端，类型由具体 provider 决定
	Client any

	// Metadata 附加到响应上的元数据
	Metadata Metadata

	// === 执行模式 ===

	// Stream 流式调用
	Stream bool

	// OutputParser 对 CallResponse 做后处理，不能与 Stream 或 ResponseModel 同时使用
	OutputParser func(*CallResponse) (any, error)

	// ResponseModel 结构化抽取的目标类型
	ResponseModel *ResponseModel

	// Logger 日志记录器，默认丢弃所有日志
	Logger *slog.Logger
}

// ApplyCallOptions 应用所有选项并返回最终配置
func ApplyCallOptions(opts ...CallOption) CallConfig {
	cfg := CallConfig{Params: CallParams{}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg
}

// WithPrompt 设置提示词模板
func WithPrompt(template string) CallOption {
	return func(c *CallConfig) {
		c.Prompt = template
	}
}

// WithCallParams 合并默认调用参数
func WithCallParams(params CallParams) CallOption {
	return func(c *CallConfig) {
		c.Params = c.Params.Merge(params)
	}
}

// WithCallParam 设置单个调用参数
func WithCallParam(key string, value any) CallOption {
	return func(c *CallConfig) {
		c.Params = c.Params.Merge(CallParams{key: value})
	}
}

// WithTools 追加工具
func WithTools(tools ...ToolSpec) CallOption {
	return func(c *CallConfig) {
		c.Tools = append(c.Tools, tools...)
	}
}

// WithJSONMode 启用 JSON 模式
func WithJSONMode() CallOption {
	return func(c *CallConfig) {
		c.JSONMode = true
	}
}

// WithClient 覆盖 provider 默认客户端
func WithClient(client any) CallOption {
	return func(c *CallConfig) {
		c.Client = client
	}
}

// WithTags 追加元数据标签
func WithTags(tags ...string) CallOption {
	return func(c *CallConfig) {
		c.Metadata = c.Metadata.Merge(NewMetadata(tags...))
	}
}

// WithStream 以流式方式调用
func WithStream() CallOption {
	return func(c *CallConfig) {
		c.Stream = true
	}
}

// WithOutputParser 设置输出解析器
func WithOutputParser(parser func(*CallResponse) (any, error)) CallOption {
	return func(c *CallConfig) {
		c.OutputParser = parser
	}
}

// WithResponseModel 设置结构化抽取的目标类型，通常配合 ResponseModelOf 使用
func WithResponseModel(model *ResponseModel) CallOption {
	return func(c *CallConfig) {
		c.ResponseModel = model
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *slog.Logger) CallOption {
	return func(c *CallConfig) {
		c.Logger = logger
	}
}
