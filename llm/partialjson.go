package llm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// errPartialEnd 输入在值的中途结束
var errPartialEnd = errors.New("partial json: unexpected end")

// ParsePartialJSON 尽力解析可能被截断的 JSON 前缀
//
// 采用 trailing-strings 语义：未闭合的字符串保留已到达的部分，未闭合的对象和数组
// 按已完成的成员闭合，缺少值的键、未完成的数字与字面量被丢弃。
// 输入的前缀越长，结果中已出现的字段不会变回缺失。
// 完整输入的结果与 encoding/json 解码到 any 一致（数字为 float64）。
func ParsePartialJSON(s string) (any, error) {
	p := &partialParser{s: s}
	p.skipSpace()
	if p.eof() {
		return nil, errPartialEnd
	}
	v, err := p.value()
	if err != nil && !errors.Is(err, errPartialEnd) {
		return nil, err
	}
	if err == nil {
		p.skipSpace()
		if !p.eof() {
			return nil, errors.New("partial json: trailing data after value")
		}
	}
	if v == absent {
		return nil, errPartialEnd
	}
	return v, nil
}

type absentValue struct{}

// absent 标记被丢弃的未完成值
var absent = absentValue{}

type partialParser struct {
	s   string
	pos int
}

func (p *partialParser) eof() bool { return p.pos >= len(p.s) }

func (p *partialParser) skipSpace() {
	for !p.eof() {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *partialParser) value() (any, error) {
	p.skipSpace()
	if p.eof() {
		return absent, errPartialEnd
	}
	switch c := p.s[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		return p.str()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return p.literal()
	}
}

func (p *partialParser) object() (any, error) {
	p.pos++ // {
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.eof() {
			return out, errPartialEnd
		}
		if p.s[p.pos] == '}' {
			p.pos++
			return out, nil
		}
		if p.s[p.pos] != '"' {
			return nil, p.syntax("expected object key")
		}
		key, err := p.str()
		if err != nil {
			return out, err
		}
		p.skipSpace()
		if p.eof() {
			return out, errPartialEnd
		}
		if p.s[p.pos] != ':' {
			return nil, p.syntax("expected ':'")
		}
		p.pos++
		v, err := p.value()
		if v != absent {
			out[key.(string)] = v
		}
		if err != nil {
			return out, err
		}
		p.skipSpace()
		if p.eof() {
			return out, errPartialEnd
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.syntax("expected ',' or '}'")
		}
	}
}

func (p *partialParser) array() (any, error) {
	p.pos++ // [
	out := []any{}
	for {
		p.skipSpace()
		if p.eof() {
			return out, errPartialEnd
		}
		if p.s[p.pos] == ']' {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if v != absent {
			out = append(out, v)
		}
		if err != nil {
			return out, err
		}
		p.skipSpace()
		if p.eof() {
			return out, errPartialEnd
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return out, nil
		default:
			return nil, p.syntax("expected ',' or ']'")
		}
	}
}

func (p *partialParser) str() (any, error) {
	p.pos++ // "
	var b strings.Builder
	for !p.eof() {
		c := p.s[p.pos]
		switch {
		case c == '"':
			p.pos++
			return b.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.s) {
				p.pos = len(p.s)
				return b.String(), errPartialEnd
			}
			esc := p.s[p.pos+1]
			switch esc {
			case '"', '\\', '/':
				b.WriteByte(esc)
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				r, n, ok := p.unicodeEscape(p.pos)
				if !ok {
					p.pos = len(p.s)
					return b.String(), errPartialEnd
				}
				b.WriteRune(r)
				p.pos += n
				continue
			default:
				return nil, p.syntax("invalid escape")
			}
			p.pos += 2
		default:
			r, size := utf8.DecodeRuneInString(p.s[p.pos:])
			if r == utf8.RuneError && size == 1 && !utf8.FullRuneInString(p.s[p.pos:]) {
				p.pos = len(p.s)
				return b.String(), errPartialEnd
			}
			b.WriteRune(r)
			p.pos += size
		}
	}
	return b.String(), errPartialEnd
}

// unicodeEscape 解析从 at 开始的 \uXXXX（含代理对），返回 rune 与消耗的字节数
func (p *partialParser) unicodeEscape(at int) (rune, int, bool) {
	if at+6 > len(p.s) {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(p.s[at+2:at+6], 16, 16)
	if err != nil {
		return utf8.RuneError, 6, true
	}
	r := rune(v)
	if utf16.IsSurrogate(r) {
		if at+12 > len(p.s) {
			return 0, 0, false
		}
		if p.s[at+6] == '\\' && p.s[at+7] == 'u' {
			v2, err := strconv.ParseUint(p.s[at+8:at+12], 16, 16)
			if err == nil {
				return utf16.DecodeRune(r, rune(v2)), 12, true
			}
		}
		return utf8.RuneError, 6, true
	}
	return r, 6, true
}

func (p *partialParser) number() (any, error) {
	start := p.pos
	for !p.eof() && strings.IndexByte("+-0123456789.eE", p.s[p.pos]) >= 0 {
		p.pos++
	}
	lit := p.s[start:p.pos]
	f, err := strconv.ParseFloat(lit, 64)
	if p.eof() {
		// 数字可能尚未结束：去掉末尾未完成的指数或符号，保留可解析的最长前缀
		for err != nil {
			lit = strings.TrimRight(lit, "eE+-")
			if lit == "" {
				return absent, errPartialEnd
			}
			if f, err = strconv.ParseFloat(lit, 64); err != nil {
				lit = lit[:len(lit)-1]
			}
		}
		return f, errPartialEnd
	}
	if err != nil {
		return nil, p.syntax("invalid number")
	}
	return f, nil
}

func (p *partialParser) literal() (any, error) {
	for _, lit := range []struct {
		text string
		val  any
	}{{"true", true}, {"false", false}, {"null", nil}} {
		rest := p.s[p.pos:]
		if strings.HasPrefix(rest, lit.text) {
			p.pos += len(lit.text)
			return lit.val, nil
		}
		if strings.HasPrefix(lit.text, rest) {
			p.pos = len(p.s)
			return absent, errPartialEnd
		}
	}
	return nil, p.syntax("invalid literal")
}

func (p *partialParser) syntax(msg string) error {
	return fmt.Errorf("partial json: %s at offset %d", msg, p.pos)
}
