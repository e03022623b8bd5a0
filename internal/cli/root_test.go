package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapingest/internal/cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(func() {
		config.ResetConfig()
		cfgFile = ""
	})

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"import", "fetch", "runs", "migrate", "config", "init", "version", "completion"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}

	for _, flag := range []string{"config", "database", "driver", "cache-dir", "data-dir", "verbose", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_FlagsReachCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "leapingest.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  path: from_file.db\n"), 0600))
	dbPath := filepath.Join(dir, "from_flag.db")

	out, err := executeRoot(t, "--config", cfgPath, "--database", dbPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated database from version 0 to 1")

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "--database overrides the config file")
	_, err = os.Stat(filepath.Join(dir, "from_file.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "leapingest.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_format: xml\n"), 0600))

	_, err := executeRoot(t, "--config", cfgPath, "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log format")
}

func TestRootCmd_ConfigShowsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "leapingest.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("scholarships:\n  year: 2017\n"), 0600))

	require.NoError(t, os.Setenv("LEAPINGEST_SCHOLARSHIPS__YEAR", "2019"))
	defer func() { _ = os.Unsetenv("LEAPINGEST_SCHOLARSHIPS__YEAR") }()

	out, err := executeRoot(t, "--config", cfgPath, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "year: 2019")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := executeRoot(t, "completion", shell)
			require.NoError(t, err)
			assert.Contains(t, out, "leapingest")
		})
	}

	_, err := executeRoot(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, err := executeRoot(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapingest "+Version)
}
