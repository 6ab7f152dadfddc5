package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

// Request 是 generateContent 的请求体
type Request struct {
	Contents          []Content      `json:"contents"`
	SystemInstruction *Content       `json:"systemInstruction,omitempty"`
	Tools             []Tool         `json:"tools,omitempty"`
	ToolConfig        *ToolConfig    `json:"toolConfig,omitempty"`
	GenerationConfig  map[string]any `json:"generationConfig,omitempty"`
	SafetySettings    any            `json:"safetySettings,omitempty"`
}

func (r *Request) JSON() ([]byte, error) { return json.Marshal(r) }

// Content 是一条消息，也是助手消息参数的类型；Role 为 user 或 model
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type FunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type ToolConfig struct {
	FunctionCallingConfig FunctionCallingConfig `json:"functionCallingConfig"`
}

type FunctionCallingConfig struct {
	Mode string `json:"mode"`
}

func (c *Client) BuildRequest(in llm.CallInput) (llm.Request, error) {
	system, contents, err := convertMessages(in.Messages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	req := &Request{Contents: contents, SystemInstruction: system}
	params := in.Params.Clone()
	for _, k := range []string{"safetySettings", "safety_settings"} {
		if v, ok := params[k]; ok {
			req.SafetySettings = v
			delete(params, k)
		}
	}
	if len(params) > 0 {
		req.GenerationConfig = map[string]any(params)
	}
	if in.JSONMode {
		if req.GenerationConfig == nil {
			req.GenerationConfig = map[string]any{}
		}
		req.GenerationConfig["responseMimeType"] = "application/json"
	}

	if len(in.Tools) > 0 {
		decls := make([]FunctionDeclaration, 0, len(in.Tools))
		for _, t := range in.Tools {
			decls = append(decls, FunctionDeclaration{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  stripSchema(t.Parameters()),
			})
		}
		req.Tools = []Tool{{FunctionDeclarations: decls}}
		req.ToolConfig = &ToolConfig{FunctionCallingConfig: FunctionCallingConfig{Mode: "AUTO"}}
	}
	return req, nil
}

func convertMessages(in []schema.Message) (*Content, []Content, error) {
	var (
		system []string
		out    []Content
	)
	for _, m := range in {
		var role string
		switch m.Role {
		case schema.RoleSystem:
			system = append(system, m.Text())
			continue
		case schema.RoleUser, schema.RoleTool:
			role = "user"
		case schema.RoleAssistant:
			role = "model"
		default:
			return nil, nil, fmt.Errorf("unsupported role %q", m.Role)
		}

		parts := make([]Part, 0, len(m.Content))
		for _, part := range m.Content {
			switch v := part.(type) {
			case schema.TextContent:
				parts = append(parts, Part{Text: v.Text})
			case schema.ImageContent:
				parts = append(parts, Part{InlineData: &Blob{
					MIMEType: v.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(v.Data),
				}})
			case schema.ToolCallContent:
				parts = append(parts, functionCallPart(v.ToolCall))
			case schema.ToolResultContent:
				parts = append(parts, Part{FunctionResponse: &FunctionResponse{
					Name:     v.Name,
					Response: map[string]any{"result": v.Value},
				}})
			}
		}
		out = append(out, Content{Role: role, Parts: parts})
	}

	if len(system) == 0 {
		return nil, out, nil
	}
	return &Content{Parts: []Part{{Text: strings.Join(system, "\n\n")}}}, out, nil
}

func functionCallPart(tc schema.ToolCall) Part {
	args := json.RawMessage(tc.Arguments)
	if !gjson.Valid(tc.Arguments) {
		args = json.RawMessage(`{}`)
	}
	return Part{FunctionCall: &FunctionCall{Name: tc.Name, Args: args}}
}

func modelContent(content string, calls []schema.ToolCall) Content {
	c := Content{Role: "model"}
	if content != "" {
		c.Parts = append(c.Parts, Part{Text: content})
	}
	for _, tc := range calls {
		c.Parts = append(c.Parts, functionCallPart(tc))
	}
	return c
}

// stripSchema 递归移除 Gemini 不接受的 JSON Schema 关键字
func stripSchema(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		switch k {
		case "additionalProperties", "$schema", "title":
			continue
		case "properties":
			// 键是字段名，不是关键字
			if props, ok := val.(map[string]any); ok {
				kept := make(map[string]any, len(props))
				for name, p := range props {
					kept[name] = stripValue(p)
				}
				out[k] = kept
				continue
			}
		}
		out[k] = stripValue(val)
	}
	return out
}

func stripValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return stripSchema(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = stripValue(e)
		}
		return out
	default:
		return v
	}
}
