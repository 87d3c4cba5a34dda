package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs rootCmd with args against an isolated home directory
// and returns what the command wrote to stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("GOSHEETS_LOG_LEVEL", "")

	resetFlags(rootCmd)
	appConfig = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestSetVersionInfo(t *testing.T) {
	orig := versionInfo
	defer func() { versionInfo = orig }()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{name: "set all values", version: "1.0.0", commit: "abc123", buildDate: "2024-01-15"},
		{name: "set dev version", version: "dev", commit: "HEAD", buildDate: "unknown"},
		{name: "set empty values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestExitCode(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain error", err: cause, want: exitCodeGeneric},
		{name: "exit error", err: exitError(foundry.ExitInvalidArgument, "bad", cause), want: foundry.ExitInvalidArgument},
		{
			name: "wrapped exit error",
			err:  errors.Join(errors.New("outer"), exitError(foundry.ExitFileNotFound, "missing", cause)),
			want: foundry.ExitFileNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := exitError(foundry.ExitInvalidArgument, "Invalid URI", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Invalid URI: boom")
	assert.Contains(t, err.Error(), "exit code")

	bare := exitError(foundry.ExitInvalidArgument, "Nothing", nil)
	assert.NotContains(t, bare.Error(), "<nil>")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"open", "dbm", "serve", "doctor", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestInitConfig(t *testing.T) {
	t.Run("loads config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("dbm:\n  encoding: latin1\n"), 0o600))

		_, err := executeCommand(t, "--config", path, "version")
		require.NoError(t, err)
		require.NotNil(t, appConfig)
		assert.Equal(t, "latin1", appConfig.DBM.Encoding)
	})

	t.Run("invalid config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("dbm:\n  colour: blue\n"), 0o600))

		_, err := executeCommand(t, "--config", path, "version")
		require.Error(t, err)
		assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := executeCommand(t, "--log-level", "chatty", "version")
		require.Error(t, err)
		assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	})
}

func TestExecute(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	resetFlags(rootCmd)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetArgs([]string{"open", "s3://bucket/key"})
	defer rootCmd.SetArgs(nil)
	defer rootCmd.SetOut(nil)

	assert.Equal(t, foundry.ExitInvalidArgument, Execute(context.Background()))
}
