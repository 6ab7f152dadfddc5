package llm

import (
	"context"
	"reflect"
	"strings"
)

// ToolkitMethod 是注册到 Toolkit 的一个方法
type ToolkitMethod[S any] struct {
	name     string
	template string
	build    func(name, description string, self S) (ToolSpec, error)
}

// ToolkitTool 注册一个工具方法
//
// template 是工具描述模板，只能引用 {self.<field>}，在 CreateTools 时按 self 的状态渲染
func ToolkitTool[S, T any](name, template string, fn func(ctx context.Context, self S, args T) (string, error)) ToolkitMethod[S] {
	return ToolkitMethod[S]{
		name:     name,
		template: template,
		build: func(name, description string, self S) (ToolSpec, error) {
			t, err := FuncTool[T](name, description, func(ctx context.Context, args T) (string, error) {
				return fn(ctx, self, args)
			})
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
}

// Toolkit groups tool methods that share state S. Methods are registered
// explicitly and validated once in NewToolkit.
type Toolkit[S any] struct {
	namespace string
	methods   []ToolkitMethod[S]
}

// NewToolkit 创建工具集并校验所有方法
func NewToolkit[S any](namespace string, methods ...ToolkitMethod[S]) (*Toolkit[S], error) {
	if len(methods) == 0 {
		return nil, configErrorf("toolkit %q must register at least one tool", namespace)
	}

	stateType := reflect.TypeFor[S]()
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		if strings.TrimSpace(m.name) == "" {
			return nil, configErrorf("toolkit %q: tool name is required", namespace)
		}
		if seen[m.name] {
			return nil, configErrorf("toolkit %q: duplicate tool %q", namespace, m.name)
		}
		seen[m.name] = true

		if strings.TrimSpace(m.template) == "" {
			return nil, configErrorf("toolkit %q: tool %q requires a description template", namespace, m.name)
		}
		vars, err := TemplateVariables(m.template)
		if err != nil {
			return nil, configErrorf("toolkit %q: tool %q: %v", namespace, m.name, err)
		}
		for _, v := range vars {
			field, ok := strings.CutPrefix(v, "self.")
			if !ok {
				return nil, configErrorf("toolkit %q: tool %q: template variable %q must use the self. prefix", namespace, m.name, v)
			}
			first, _, _ := strings.Cut(field, ".")
			if !hasField(stateType, first) {
				return nil, configErrorf("toolkit %q: tool %q: template variable %q is not a field of %s", namespace, m.name, v, stateType)
			}
		}
	}
	return &Toolkit[S]{namespace: namespace, methods: methods}, nil
}

// CreateTools 按 self 的当前状态生成工具定义，顺序与注册顺序一致
func (k *Toolkit[S]) CreateTools(self S) ([]ToolSpec, error) {
	scope := map[string]any{"self": self}
	out := make([]ToolSpec, 0, len(k.methods))
	for _, m := range k.methods {
		desc, err := RenderTemplate(m.template, scope)
		if err != nil {
			return nil, err
		}
		name := m.name
		if k.namespace != "" {
			name = k.namespace + "_" + m.name
		}
		spec, err := m.build(name, desc, self)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// Namespace 返回工具名前缀
func (k *Toolkit[S]) Namespace() string { return k.namespace }

func hasField(t reflect.Type, name string) bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Map:
		return t.Key().Kind() == reflect.String
	case reflect.Struct:
		_, ok := lookupField(reflect.New(t).Elem(), name)
		return ok
	}
	return false
}
