package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTuple(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr string
	}{
		{name: "single", in: "[Store].[USA]", want: []string{"[Store].[USA]"}},
		{name: "pair", in: "[Store].[USA], [Time].[1997]", want: []string{"[Store].[USA]", "[Time].[1997]"}},
		{name: "comma inside brackets", in: "[Store].[Washington, DC],[Time].[1997]", want: []string{"[Store].[Washington, DC]", "[Time].[1997]"}},
		{name: "unbalanced close", in: "[Store]].[USA]", wantErr: "unbalanced ']'"},
		{name: "unbalanced open", in: "[Store].[USA", wantErr: "unbalanced '['"},
		{name: "empty member", in: "[Store].[USA],", wantErr: "empty member"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitTuple(tt.in)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShellFields(t *testing.T) {
	got, err := shellFields(`  lead [Time].[Q1 1997]   2 `)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "[Time].[Q1 1997]", "2"}, got)

	for _, blank := range []string{"", "  \t "} {
		got, err = shellFields(blank)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, execShellLine(nil, nil, nil, blank), "a blank line is skipped")
	}

	_, err = shellFields("children [Store].[USA")
	require.Error(t, err)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewMembersCommand(), "members <level>", []string{"cube", "context", "measure", "count"}},
		{NewLookupCommand(), "lookup <member>", []string{"cube", "must"}},
		{NewTuplesCommand(), "tuples <level>...", []string{"cube", "limit"}},
		{NewChangesCommand(), "changes", []string{"since", "limit", "prune"}},
		{NewSeedCommand(), "seed", []string{"sample", "dir"}},
		{NewWarmCommand(), "warm", []string{"cube", "parallel"}},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			for _, f := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(f), "flag --%s", f)
			}
		})
	}
}
