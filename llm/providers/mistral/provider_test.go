package mistral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylarbpayne/mirascope/llm"
	"github.com/skylarbpayne/mirascope/llm/providers/openai_compat"
	"github.com/skylarbpayne/mirascope/llm/schema"
)

func TestMistral_RewritesRequiredToolChoice(t *testing.T) {
	p, err := New("m-test")
	require.NoError(t, err)
	assert.Equal(t, "mistral", p.Name())

	req, err := p.BuildRequest(llm.CallInput{
		Messages: []schema.Message{schema.UserMessage("hi")},
		Params:   llm.CallParams{"tool_choice": "required"},
	})
	require.NoError(t, err)
	assert.Equal(t, "any", req.(*openai_compat.Request).Extra["tool_choice"])
}
