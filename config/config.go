// Package config loads application settings with viper and keeps them
// current as the file changes on disk.
package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// reloadDebounce 合并编辑器保存时产生的连续写事件
const reloadDebounce = 100 * time.Millisecond

// Config 配置管理器
type Config[T any] struct {
	v         *viper.Viper
	path      string
	value     *T
	mu        sync.RWMutex
	watchers  []func(old, new T)
	transform func(*T)
	logger    *slog.Logger

	// watchOnce 在首次注册回调时启动文件监控
	watchOnce sync.Once
	watching  bool
}

// Option 配置选项
type Option[T any] func(*Config[T])

// WithDefaults 设置默认值
func WithDefaults[T any](defaults map[string]any) Option[T] {
	return func(c *Config[T]) {
		for k, v := range defaults {
			c.v.SetDefault(k, v)
		}
	}
}

// WithEnv 绑定环境变量，如 prefix 为 MIRASCOPE 时 log_level 对应 MIRASCOPE_LOG_LEVEL
func WithEnv[T any](prefix string) Option[T] {
	return func(c *Config[T]) {
		c.v.SetEnvPrefix(prefix)
		c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		c.v.AutomaticEnv()
	}
}

// WithTransform 在每次加载后处理解码结果，如展开环境变量
func WithTransform[T any](fn func(*T)) Option[T] {
	return func(c *Config[T]) {
		c.transform = fn
	}
}

// WithLogger 记录重新加载失败等事件
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *Config[T]) {
		c.logger = logger
	}
}

// Load 加载配置
//
// path 非空时读取该文件，首次调用 OnChange 后才监控变更；为空时只使用默认值与环境变量
func Load[T any](path string, opts ...Option[T]) (*Config[T], error) {
	v := viper.New()
	c := &Config[T]{
		v:      v,
		path:   path,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	val, err := c.decode()
	if err != nil {
		return nil, err
	}
	c.value = &val
	return c, nil
}

func (c *Config[T]) decode() (T, error) {
	var val T
	if err := c.v.Unmarshal(&val); err != nil {
		return val, err
	}
	if c.transform != nil {
		c.transform(&val)
	}
	return val, nil
}

// Get 获取当前配置（并发安全，返回深拷贝）
func (c *Config[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(*c.value)
}

// Path 返回配置文件路径，未使用文件时为空
func (c *Config[T]) Path() string { return c.path }

// OnChange 注册配置变更回调，并在使用配置文件时开始监控该文件
func (c *Config[T]) OnChange(callback func(old, new T)) {
	c.mu.Lock()
	c.watchers = append(c.watchers, callback)
	c.mu.Unlock()

	if c.path != "" {
		c.watchOnce.Do(c.watch)
	}
}

// Watching 报告是否已在监控配置文件
func (c *Config[T]) Watching() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching
}

// Changed 比较两个值是否不同
func Changed[T any](old, new T) bool {
	return !reflect.DeepEqual(old, new)
}

// deepCopy 通过 JSON 序列化实现深拷贝
func deepCopy[T any](src T) T {
	var dst T
	data, _ := json.Marshal(src)
	_ = json.Unmarshal(data, &dst)
	return dst
}

func (c *Config[T]) watch() {
	var (
		debounceTimer *time.Timer
		debounceMu    sync.Mutex
	)

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(reloadDebounce, c.Reload)
		debounceMu.Unlock()
	})

	c.v.WatchConfig()

	c.mu.Lock()
	c.watching = true
	c.mu.Unlock()
}

// Reload 重新读取配置文件，值发生变化时依次通知回调
//
// 读取或解码失败时保留旧值
func (c *Config[T]) Reload() {
	oldConfig := c.Get()

	newConfig, watchers, ok := c.reloadConfig()
	if !ok {
		return
	}

	if reflect.DeepEqual(oldConfig, newConfig) {
		return
	}

	for _, cb := range watchers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("config change callback panicked", "path", c.path, "panic", r)
				}
			}()
			cb(oldConfig, newConfig)
		}()
	}
}

// reloadConfig 重新加载配置，返回新配置、回调列表和是否成功
func (c *Config[T]) reloadConfig() (T, []func(old, new T), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if c.path != "" {
		if err := c.v.ReadInConfig(); err != nil {
			c.logger.Warn("config reload failed", "path", c.path, "err", err)
			return zero, nil, false
		}
	}

	val, err := c.decode()
	if err != nil {
		c.logger.Warn("config decode failed", "path", c.path, "err", err)
		return zero, nil, false
	}
	c.value = &val

	watchers := make([]func(old, new T), len(c.watchers))
	copy(watchers, c.watchers)

	return deepCopy(val), watchers, true
}
