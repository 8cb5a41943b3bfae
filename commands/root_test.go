package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeWithArgs(args ...string) error {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{flag: "from", want: "now"},
		{flag: "to", want: "now"},
		{flag: "parallel", want: "1"},
		{flag: "output-dir", want: "./data"},
		{flag: "interval", want: "0s"},
		{flag: "timezone", want: "Local"},
		{flag: "reset", want: "false"},
		{flag: "quiet", want: "false"},
		{flag: "debug", want: "false"},
		{flag: "no-content", want: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := rootCmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "flag --%s must exist", tt.flag)
			assert.Equal(t, tt.want, f.DefValue)
		})
	}
}

func TestRootCmd_ShortFlags(t *testing.T) {
	shorthands := map[string]string{
		"from": "f", "to": "t", "step": "s", "debug": "d",
		"reset": "r", "quiet": "q", "parallel": "p", "output-dir": "o",
	}
	for name, short := range shorthands {
		f := rootCmd.Flags().Lookup(name)
		require.NotNil(t, f)
		assert.Equal(t, short, f.Shorthand, "--%s shorthand", name)
	}
}

func TestRootCmd_StepRequired(t *testing.T) {
	err := executeWithArgs("example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step")
}

func TestRootCmd_URLRequired(t *testing.T) {
	err := executeWithArgs("--step", "1D")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arg")
}

func TestRootCmd_SingleURLOnly(t *testing.T) {
	err := executeWithArgs("--step", "1D", "example.com", "example.org")
	require.Error(t, err)
}

func TestRootCmd_RejectsBadParallel(t *testing.T) {
	err := executeWithArgs("--step", "1D", "--parallel", "0", "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel")
}

func TestRootCmd_RejectsNegativeInterval(t *testing.T) {
	err := executeWithArgs("--step", "1D", "--parallel", "1", "--interval", "-1s", "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "results"), expandPath("~/results"))
	assert.Equal(t, "/var/tmp/results", expandPath("/var/tmp/results"))
}
