package llm

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

// ErrTemplateVariable 模板变量无法解析
var ErrTemplateVariable = errors.New("llm: unresolved template variable")

var roleMarkers = map[string]schema.Role{
	"SYSTEM:":    schema.RoleSystem,
	"USER:":      schema.RoleUser,
	"ASSISTANT:": schema.RoleAssistant,
	"MODEL:":     schema.RoleAssistant,
}

// RenderTemplate 渲染模板字符串
//
// {name} 从 args 中解析，{a.b.c} 逐级解析字段或 map 键；{{ 与 }} 输出字面量花括号。
// 结构体字段按字段名、json 标签、不区分大小写的字段名依次匹配。
// {name:list} 将切片按行展开。
func RenderTemplate(tpl string, args any) (string, error) {
	var b strings.Builder
	err := scanTemplate(tpl, func(lit string) {
		b.WriteString(lit)
	}, func(expr string) error {
		path, spec, _ := strings.Cut(expr, ":")
		v, err := lookupPath(args, strings.TrimSpace(path))
		if err != nil {
			return err
		}
		b.WriteString(formatValue(v, spec))
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderMessages 渲染模板并按行首的 SYSTEM: / USER: / ASSISTANT: 标记拆分为消息序列
//
// 没有角色标记时整个模板渲染为一条用户消息
func RenderMessages(tpl string, args any) ([]schema.Message, error) {
	var msgs []schema.Message
	for _, sec := range splitRoles(dedent(tpl)) {
		text, err := RenderTemplate(sec.body, args)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		msgs = append(msgs, schema.Message{Role: sec.role, Content: []schema.ContentPart{schema.TextPart(text)}})
	}
	return msgs, nil
}

// TemplateVariables 返回模板中的变量路径，按首次出现顺序去重
func TemplateVariables(tpl string) ([]string, error) {
	var (
		out  []string
		seen = map[string]bool{}
	)
	err := scanTemplate(tpl, func(string) {}, func(expr string) error {
		path, _, _ := strings.Cut(expr, ":")
		path = strings.TrimSpace(path)
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func scanTemplate(tpl string, lit func(string), field func(string) error) error {
	for i := 0; i < len(tpl); {
		c := tpl[i]
		switch {
		case c == '{' && i+1 < len(tpl) && tpl[i+1] == '{':
			lit("{")
			i += 2
		case c == '}' && i+1 < len(tpl) && tpl[i+1] == '}':
			lit("}")
			i += 2
		case c == '{':
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return fmt.Errorf("llm: template: unclosed '{' at offset %d", i)
			}
			expr := tpl[i+1 : i+1+end]
			if strings.TrimSpace(expr) == "" {
				return fmt.Errorf("llm: template: empty placeholder at offset %d", i)
			}
			if err := field(expr); err != nil {
				return err
			}
			i += end + 2
		case c == '}':
			return fmt.Errorf("llm: template: single '}' at offset %d", i)
		default:
			j := i
			for j < len(tpl) && tpl[j] != '{' && tpl[j] != '}' {
				j++
			}
			lit(tpl[i:j])
			i = j
		}
	}
	return nil
}

// scopeChain 按顺序在多个作用域中解析变量，先命中者优先
type scopeChain []any

func lookupPath(root any, path string) (any, error) {
	if chain, ok := root.(scopeChain); ok {
		for _, scope := range chain {
			if v, err := lookupPath(scope, path); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrTemplateVariable, path)
	}

	cur := reflect.ValueOf(root)
	for _, seg := range strings.Split(path, ".") {
		next, ok := lookupField(cur, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrTemplateVariable, path)
		}
		cur = next
	}
	if !cur.IsValid() {
		return nil, nil
	}
	return cur.Interface(), nil
}

func lookupField(v reflect.Value, name string) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, false
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		return mv, mv.IsValid()
	case reflect.Struct:
		t := v.Type()
		if f, ok := t.FieldByName(name); ok && f.IsExported() {
			return v.FieldByIndex(f.Index), true
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if tag == name || strings.EqualFold(f.Name, name) {
				return v.Field(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func formatValue(v any, spec string) string {
	if v == nil {
		return ""
	}
	if strings.TrimSpace(spec) == "list" {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			lines := make([]string, rv.Len())
			for i := range lines {
				lines[i] = fmt.Sprint(rv.Index(i).Interface())
			}
			return strings.Join(lines, "\n")
		}
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

type roleSection struct {
	role schema.Role
	body string
}

func splitRoles(tpl string) []roleSection {
	var (
		out  []roleSection
		cur  = roleSection{role: schema.RoleUser}
		body []string
		seen bool
	)
	flush := func() {
		cur.body = strings.Join(body, "\n")
		out = append(out, cur)
		body = nil
	}
	for _, line := range strings.Split(tpl, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		matched := false
		for marker, role := range roleMarkers {
			if strings.HasPrefix(trimmed, marker) {
				if seen || strings.TrimSpace(strings.Join(body, "\n")) != "" {
					flush()
				} else {
					body = nil
				}
				seen = true
				cur = roleSection{role: role}
				if rest := strings.TrimSpace(trimmed[len(marker):]); rest != "" {
					body = append(body, rest)
				}
				matched = true
				break
			}
		}
		if !matched {
			body = append(body, line)
		}
	}
	flush()
	return out
}

func dedent(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.Join(lines, "\n")
	}
	for i, l := range lines {
		if len(l) >= indent {
			lines[i] = l[indent:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
