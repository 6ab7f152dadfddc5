package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylarbpayne/mirascope/llm/schema"
)

type librarian struct {
	Genre   string
	Reading []string `json:"reading_list"`
	Shelf   *shelf
}

type shelf struct {
	Label string `json:"label"`
}

func TestRenderTemplate(t *testing.T) {
	args := librarian{
		Genre:   "fantasy",
		Reading: []string{"Dune", "Emma"},
		Shelf:   &shelf{Label: "B2"},
	}

	tests := []struct {
		tpl  string
		want string
	}{
		{tpl: "Recommend a {genre} book", want: "Recommend a fantasy book"},
		{tpl: "Recommend a {Genre} book", want: "Recommend a fantasy book"},
		{tpl: "I read:\n{reading_list:list}", want: "I read:\nDune\nEmma"},
		{tpl: "shelf {Shelf.label}", want: "shelf B2"},
		{tpl: "literal {{braces}}", want: "literal {braces}"},
		{tpl: "{ genre }", want: "fantasy"},
	}
	for _, tt := range tests {
		got, err := RenderTemplate(tt.tpl, args)
		require.NoError(t, err, tt.tpl)
		assert.Equal(t, tt.want, got)
	}

	got, err := RenderTemplate("{genre} and {count}", map[string]any{"genre": "sci-fi", "count": 3})
	require.NoError(t, err)
	assert.Equal(t, "sci-fi and 3", got)
}

func TestRenderTemplate_Errors(t *testing.T) {
	_, err := RenderTemplate("{missing}", librarian{})
	assert.ErrorIs(t, err, ErrTemplateVariable)

	_, err = RenderTemplate("{Shelf.label}", librarian{})
	assert.ErrorIs(t, err, ErrTemplateVariable, "nil pointer along the path")

	for _, tpl := range []string{"{unclosed", "stray }", "{}"} {
		_, err := RenderTemplate(tpl, librarian{})
		assert.Error(t, err, tpl)
	}
}

func TestRenderMessages(t *testing.T) {
	msgs, err := RenderMessages(`
		SYSTEM: You are a librarian.
		USER:
		Recommend a {genre} book.
		ASSISTANT: Sure, any preference?
		USER: Something short.
	`, map[string]string{"genre": "fantasy"})
	require.NoError(t, err)

	require.Len(t, msgs, 4)
	assert.Equal(t, schema.SystemMessage("You are a librarian."), msgs[0])
	assert.Equal(t, schema.UserMessage("Recommend a fantasy book."), msgs[1])
	assert.Equal(t, schema.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Something short.", msgs[3].Text())

	msgs, err = RenderMessages("Recommend a {genre} book.", map[string]string{"genre": "mystery"})
	require.NoError(t, err)
	assert.Equal(t, []schema.Message{schema.UserMessage("Recommend a mystery book.")}, msgs)
}

func TestTemplateVariables(t *testing.T) {
	vars, err := TemplateVariables("{genre} {self.name} {genre:list} {{x}}")
	require.NoError(t, err)
	assert.Equal(t, []string{"genre", "self.name"}, vars)
}

func TestRenderTemplate_ComputedFieldsShadowArgs(t *testing.T) {
	got, err := RenderTemplate("{genre}/{Shelf.label}", scopeChain{
		map[string]any{"genre": "horror"},
		librarian{Genre: "fantasy", Shelf: &shelf{Label: "C1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "horror/C1", got)
}
