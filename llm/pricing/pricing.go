// Package pricing 提供按 provider 与模型查询的 token 价格表。
//
// 价格表在启动时加载一次，之后只读；未知模型返回 nil 费用而不是错误。
package pricing

import (
	_ "embed"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var defaultPrices []byte

// Price 每百万 token 的美元价格
type Price struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Table provider -> model -> Price
type Table struct {
	prices map[string]map[string]Price
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default 返回内置价格表
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultPrices)
		if err != nil {
			panic(fmt.Sprintf("pricing: embedded price table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Parse 解析 YAML 格式的价格表
func Parse(data []byte) (*Table, error) {
	var prices map[string]map[string]Price
	if err := yaml.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("pricing: decode: %w", err)
	}
	for provider, models := range prices {
		for model, p := range models {
			if p.Input < 0 || p.Output < 0 {
				return nil, fmt.Errorf("pricing: %s/%s: negative price", provider, model)
			}
		}
	}
	if prices == nil {
		prices = map[string]map[string]Price{}
	}
	return &Table{prices: prices}, nil
}

// Load 从 r 读取价格表
func Load(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pricing: read: %w", err)
	}
	return Parse(data)
}

// Merge 返回以 override 覆盖 t 后的新表，两者均不被修改
func (t *Table) Merge(override *Table) *Table {
	out := make(map[string]map[string]Price, len(t.prices))
	for provider, models := range t.prices {
		out[provider] = maps.Clone(models)
	}
	if override != nil {
		for provider, models := range override.prices {
			if out[provider] == nil {
				out[provider] = map[string]Price{}
			}
			maps.Copy(out[provider], models)
		}
	}
	return &Table{prices: out}
}

// versionSuffix 匹配同一模型的快照后缀：日期（-2024-07-18、-20240620、-08-2024）、
// 数字版本号（-001、-2407）与 -latest
var versionSuffix = regexp.MustCompile(`^-(\d{4}-\d{2}-\d{2}|\d{8}|\d{2}-\d{4}|\d{3,4}|latest)$`)

// Lookup 查询价格：先精确匹配，再匹配带快照后缀的模型名，取最长的基础名
//
// 其他后缀视为不同的模型（如 gpt-4o-mini-audio-preview），返回 false
func (t *Table) Lookup(provider, model string) (Price, bool) {
	models := t.prices[provider]
	if models == nil {
		return Price{}, false
	}
	if p, ok := models[model]; ok {
		return p, true
	}
	best := ""
	for name := range models {
		rest, ok := strings.CutPrefix(model, name)
		if ok && versionSuffix.MatchString(rest) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return Price{}, false
	}
	return models[best], true
}

// Cost 计算费用（美元），模型未知时返回 nil
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) *float64 {
	p, ok := t.Lookup(provider, model)
	if !ok {
		return nil
	}
	c := (float64(inputTokens)*p.Input + float64(outputTokens)*p.Output) / 1_000_000
	return &c
}

// Providers 返回已知 provider，按名称排序
func (t *Table) Providers() []string {
	return slices.Sorted(maps.Keys(t.prices))
}

// Models 返回 provider 下的模型，按名称排序
func (t *Table) Models(provider string) []string {
	return slices.Sorted(maps.Keys(t.prices[provider]))
}
