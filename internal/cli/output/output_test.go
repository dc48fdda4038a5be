package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
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
		{"JSON", ModeJSON, false},
		{"csv", ModeCSV, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTestRenderer(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTestRenderer(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestTable(t *testing.T) {
	header := []string{"Name", "Level"}
	rows := [][]string{{"USA", "Store Country"}, {"Canada", "Store Country"}}

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeText, false)
		require.NoError(t, r.Table(header, rows))
		assert.Contains(t, out.String(), "USA")
		assert.Contains(t, out.String(), "(2 rows)")
	})

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeMarkdown, false)
		require.NoError(t, r.Table(header, rows))
		assert.Contains(t, out.String(), "| Name | Level |")
		assert.Contains(t, out.String(), "| Canada | Store Country |")
	})

	t.Run("csv", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeCSV, false)
		require.NoError(t, r.Table(header, rows))
		assert.Contains(t, out.String(), "Name,Level")
		assert.Contains(t, out.String(), "USA,Store Country")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeJSON, false)
		require.NoError(t, r.Table(header, rows))
		var got []map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "Canada", got[1]["Name"])
	})

	t.Run("empty", func(t *testing.T) {
		r, out, _ := newTestRenderer(ModeText, false)
		require.NoError(t, r.Table(header, nil))
		assert.Equal(t, "(0 rows)\n", out.String())
	})
}

func TestSuccess_JSONGoesToStderr(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeJSON, false)
	r.Success("flushed")
	assert.Empty(t, out.String())
	assert.Equal(t, "flushed\n", errOut.String())
}
