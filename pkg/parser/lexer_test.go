package parser

import (
	"testing"

	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, input string) []Token {
	t.Helper()
	tokens, err := NewLexer(input).Tokenize()
	require.NoError(t, err, "unexpected error")
	return tokens
}

func TestLexer_PlainText(t *testing.T) {
	input := "Hello, world"
	tokens := tokenize(t, input)

	require.Len(t, tokens, 2, "expected 2 tokens") // TEXT + EOF
	assert.Equal(t, TokenText, tokens[0].Type)
	assert.Equal(t, input, tokens[0].Value)
	assert.Equal(t, TokenEOF, tokens[1].Type)
}

func TestLexer_Regions(t *testing.T) {
	input := "Hi {{ name }}!{# note #}{% if x %}y{% endif %}"
	tokens := tokenize(t, input)

	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenText, "Hi "},
		{TokenOutput, "name"},
		{TokenText, "!"},
		{TokenTag, "if x"},
		{TokenText, "y"},
		{TokenTag, "endif"},
		{TokenEOF, ""},
	}

	require.Len(t, tokens, len(expected), "wrong number of tokens")
	for i, exp := range expected {
		assert.Equal(t, exp.typ, tokens[i].Type, "token[%d] type", i)
		assert.Equal(t, exp.val, tokens[i].Value, "token[%d] value", i)
	}
}

func TestLexer_WhitespaceControl(t *testing.T) {
	tests := []struct {
		name  string
		input string
		texts []string
	}{
		{"trim left", "a  \n {%- if x %}b{% endif %}", []string{"a", "b"}},
		{"trim right", "{% if x -%}\n  b{% endif %}", []string{"b"}},
		{"trim both sides of output", "a {{- x -}} b", []string{"a", "b"}},
		{"comment trims", "a\n{#- c -#}\nb", []string{"a", "b"}},
		{"no markers", "a {{ x }} b", []string{"a ", " b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var texts []string
			for _, tok := range tokenize(t, tt.input) {
				if tok.Type == TokenText {
					texts = append(texts, tok.Value)
				}
			}
			assert.Equal(t, tt.texts, texts)
		})
	}
}

func TestLexer_Raw(t *testing.T) {
	tokens := tokenize(t, "{% raw %}{{ not parsed }}{% if %}{% endraw %}after")

	require.Len(t, tokens, 5)
	assert.Equal(t, TokenTag, tokens[0].Type)
	assert.Equal(t, TokenRaw, tokens[1].Type)
	assert.Equal(t, "{{ not parsed }}{% if %}", tokens[1].Value)
	assert.Equal(t, "endraw", tokens[2].Value)
	assert.Equal(t, "after", tokens[3].Value)
}

func TestLexer_DelimiterInString(t *testing.T) {
	tokens := tokenize(t, `{{ "}}" ~ '%}' }}`)

	require.Len(t, tokens, 2)
	assert.Equal(t, `"}}" ~ '%}'`, tokens[0].Value)
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed output", "Hello {{ name"},
		{"unclosed tag", "{% if x"},
		{"unclosed comment", "{# never closed"},
		{"unclosed string", `{{ "abc }}`},
		{"unclosed raw", "{% raw %}abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.input).Tokenize()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.SyntaxError)
		})
	}
}

func TestLexer_PositionTracking(t *testing.T) {
	tokens := tokenize(t, "line1\nline2\n  {{ expr }}")

	out := tokens[1]
	require.Equal(t, TokenOutput, out.Type)
	assert.Equal(t, 3, out.Pos.Line)
	assert.Equal(t, 3, out.Pos.Column)
	assert.Equal(t, 3, out.ContentPos.Line)
	assert.Equal(t, 6, out.ContentPos.Column)
}
