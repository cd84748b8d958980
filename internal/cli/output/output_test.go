package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"TEXT", ModeText, false},
		{"md", ModeMarkdown, false},
		{"markdown", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid output format")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		tty  bool
		want Mode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto when piped", ModeAuto, false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text when piped", ModeText, false, ModeText},
		{"empty is auto", "", false, ModeMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTest(tt.mode, tt.tty)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_Markdown(t *testing.T) {
	r, out, errOut := newTest(ModeMarkdown, false)

	r.Header(1, "Templates")
	r.KeyValue("Parent", "base.html")
	r.Table([]string{"Name", "Level"}, [][]string{{"base.html", "0"}, {"page.html", "1"}})
	r.Error("boom")

	assert.Contains(t, out.String(), "# Templates\n\n")
	assert.Contains(t, out.String(), "- **Parent:** base.html\n")
	assert.Contains(t, out.String(), "| Name | Level |")
	assert.Contains(t, out.String(), "| page.html | 1 |")
	assert.Equal(t, "✗ boom\n", errOut.String())
}

func TestRenderer_TextWithoutTerminalIsPlain(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)

	r.Header(2, "Section")
	r.Success("done")
	r.Table([]string{"A"}, [][]string{{"x"}})
	r.Warning("careful")

	assert.NotContains(t, out.String(), "\x1b[", "no ANSI escapes without a terminal")
	assert.Contains(t, out.String(), "Section\n")
	assert.Contains(t, out.String(), "✓ done\n")
	assert.Contains(t, out.String(), "│ x │")
	assert.Contains(t, errOut.String(), "careful")
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"n": 1}))
	assert.Equal(t, "{\n  \"n\": 1\n}\n", out.String())
}

func TestFormatHeader(t *testing.T) {
	assert.Equal(t, "# A", FormatHeader(0, "A"))
	assert.Equal(t, "### A", FormatHeader(3, "A"))
}
