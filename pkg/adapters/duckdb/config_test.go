package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name:  "extensions",
			input: map[string]any{"extensions": []any{"json", "parquet"}},
			want:  &Params{Extensions: []string{"json", "parquet"}},
		},
		{
			name: "settings coerce numbers",
			input: map[string]any{
				"settings": map[string]any{"memory_limit": "4GB", "threads": 4},
			},
			want: &Params{Settings: map[string]string{"memory_limit": "4GB", "threads": "4"}},
		},
		{
			name:    "unknown key rejected",
			input:   map[string]any{"secrets": []any{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingStatements(t *testing.T) {
	stmts := settingStatements(map[string]string{"threads": "4", "memory_limit": "1GB"})
	assert.Equal(t, []string{
		"SET memory_limit = '1GB'",
		"SET threads = '4'",
	}, stmts)
}
