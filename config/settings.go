package config

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "MIRASCOPE"

// Settings 命令行工具的配置
type Settings struct {
	// DefaultProvider 未指定 --provider 时使用的 provider
	DefaultProvider string `mapstructure:"default_provider" json:"default_provider"`
	// LogLevel debug、info、warn 或 error
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	// Pricing 覆盖内置价格表的 YAML 文件
	Pricing string `mapstructure:"pricing" json:"pricing,omitempty"`

	Providers map[string]ProviderSettings `mapstructure:"providers" json:"providers,omitempty"`
}

// ProviderSettings 单个 provider 的连接参数，字段是否生效取决于 provider
type ProviderSettings struct {
	APIKey  string `mapstructure:"api_key" json:"api_key,omitempty"`
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`
	Model   string `mapstructure:"model" json:"model,omitempty"`

	// Azure
	Endpoint   string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	APIVersion string `mapstructure:"api_version" json:"api_version,omitempty"`

	// Vertex
	Project     string `mapstructure:"project" json:"project,omitempty"`
	Location    string `mapstructure:"location" json:"location,omitempty"`
	AccessToken string `mapstructure:"access_token" json:"access_token,omitempty"`
}

// LoadSettings 加载配置文件，path 为空时只使用默认值与 MIRASCOPE_ 环境变量
//
// 字符串字段中的 ${VAR} 在每次加载后展开
func LoadSettings(path string, opts ...Option[Settings]) (*Config[Settings], error) {
	base := []Option[Settings]{
		WithDefaults[Settings](map[string]any{
			"default_provider": "openai",
			"log_level":        "info",
			"pricing":          "",
		}),
		WithEnv[Settings](EnvPrefix),
		WithTransform(func(s *Settings) { s.expand(os.Getenv) }),
	}
	return Load(path, append(base, opts...)...)
}

func (s *Settings) expand(lookup func(string) string) {
	s.DefaultProvider = os.Expand(s.DefaultProvider, lookup)
	s.LogLevel = os.Expand(s.LogLevel, lookup)
	s.Pricing = os.Expand(s.Pricing, lookup)
	for name, p := range s.Providers {
		p.APIKey = os.Expand(p.APIKey, lookup)
		p.BaseURL = os.Expand(p.BaseURL, lookup)
		p.Model = os.Expand(p.Model, lookup)
		p.Endpoint = os.Expand(p.Endpoint, lookup)
		p.APIVersion = os.Expand(p.APIVersion, lookup)
		p.Project = os.Expand(p.Project, lookup)
		p.Location = os.Expand(p.Location, lookup)
		p.AccessToken = os.Expand(p.AccessToken, lookup)
		s.Providers[name] = p
	}
}

// Provider 返回 provider 的配置，未配置时返回零值
func (s Settings) Provider(name string) (ProviderSettings, bool) {
	p, ok := s.Providers[strings.ToLower(name)]
	return p, ok
}

// ProviderNames 返回已配置的 provider，按名称排序
func (s Settings) ProviderNames() []string {
	return slices.Sorted(maps.Keys(s.Providers))
}

// Level 解析日志级别
func (s Settings) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log_level %q: %w", s.LogLevel, err)
	}
	return l, nil
}
