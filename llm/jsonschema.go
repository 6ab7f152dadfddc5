package llm

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Describer 由结构化类型实现，用作工具或抽取模型的描述
type Describer interface {
	Description() string
}

// SchemaFor 生成 T 的 JSON Schema，包含 title、description、properties、required
func SchemaFor[T any]() (map[string]any, error) {
	return SchemaOf(reflect.TypeFor[T]())
}

// SchemaOf 生成类型 t 的 JSON Schema
//
// 非结构体类型（字符串、切片、数字等）包装为只含 value 属性的对象
func SchemaOf(t reflect.Type) (map[string]any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	s := r.ReflectFromType(t)

	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal schema for %s: %w", t, err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("llm: decode schema for %s: %w", t, err)
	}
	delete(out, "$schema")
	delete(out, "$id")

	if t.Kind() != reflect.Struct {
		out = map[string]any{
			"type":       "object",
			"properties": map[string]any{"value": out},
			"required":   []any{"value"},
		}
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	if _, ok := out["required"]; !ok {
		out["required"] = []any{}
	}
	out["title"] = typeName(t)
	if d := describe(t); d != "" {
		out["description"] = d
	}
	return out, nil
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.Kind().String()
}

func describe(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v := reflect.New(t)
	if d, ok := v.Interface().(Describer); ok {
		return d.Description()
	}
	if d, ok := v.Elem().Interface().(Describer); ok {
		return d.Description()
	}
	return ""
}

// wrapsValue 判断类型 t 的 schema 是否被包装在 value 属性中
func wrapsValue(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() != reflect.Struct
}
