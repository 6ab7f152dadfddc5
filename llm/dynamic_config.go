package llm

import "github.com/skylarbpayne/mirascope/llm/schema"

// Prompt is what a prompt function returns: Messages, *DynamicConfig, or nil
// to render the declared template against the call arguments.
type Prompt interface {
	prompt()
}

// Messages is an explicit message sequence returned by a prompt function.
type Messages []schema.Message

func (Messages) prompt() {}

// DynamicConfig lets a prompt function override the declared defaults per call.
//
// When Messages is empty the declared template is rendered against the call
// arguments, with ComputedFields taking precedence over argument fields.
type DynamicConfig struct {
	Messages       []schema.Message
	CallParams     CallParams
	Metadata       Metadata
	Client         any
	Tools          []ToolSpec
	ComputedFields map[string]any
}

func (*DynamicConfig) prompt() {}
