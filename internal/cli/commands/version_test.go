package commands

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		info    BuildInfo
		want    []string
		notWant string
	}{
		{
			name:    "release",
			info:    BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-02"},
			want:    []string{"LeapOLAP v1.2.3", "commit abc123 built 2026-01-02"},
			notWant: "",
		},
		{
			name:    "unknown commit",
			info:    BuildInfo{Version: "dev", Commit: "unknown", Date: "unknown"},
			want:    []string{"LeapOLAP vdev"},
			notWant: "commit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs(nil)
			require.NoError(t, cmd.Execute())

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			assert.Contains(t, out, runtime.Version())
			if tt.notWant != "" {
				assert.NotContains(t, out, tt.notWant)
			}
		})
	}
}

func TestVersionCommand_RejectsArgs(t *testing.T) {
	cmd := NewVersionCommand(BuildInfo{Version: "1.0.0"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"extra"})
	require.Error(t, cmd.Execute())
}
