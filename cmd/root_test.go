//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/discovery-engine/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "interview", "catalog", "replay", "sessions", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "discovery", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestInterviewCommand_Flags(t *testing.T) {
	for _, name := range []string{"summary", "session"} {
		assert.NotNil(t, interviewCmd.Flags().Lookup(name), "interview should have --%s flag", name)
	}
}

func TestCatalogCommand_Flags(t *testing.T) {
	flag := catalogCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "yaml", flag.DefValue)
}

func TestReplayCommand_Flags(t *testing.T) {
	flag := replayCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestSessionsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range sessionsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "prune", "export"} {
		assert.True(t, names[name], "sessions should have subcommand %q", name)
	}

	for _, flagName := range []string{"state", "limit", "offset", "json"} {
		assert.NotNil(t, sessionsListCmd.Flags().Lookup(flagName), "sessions list should have --%s flag", flagName)
	}
	assert.NotNil(t, sessionsPruneCmd.Flags().Lookup("days"))
	out := sessionsExportCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "sessions.xlsx", out.DefValue)
}

func TestRootCmd_PersistentPreRunE_WithValidConfig(t *testing.T) {
	dir := chdirTemp(t)
	content := `
store:
  driver: memory
log:
  level: info
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	withConfig(t)
	require.NotNil(t, cfg)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
}

func TestRootCmd_PersistentPreRunE_NoConfigFile(t *testing.T) {
	chdirTemp(t)

	withConfig(t)
	require.NotNil(t, cfg)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, config.ProviderKeyword, cfg.Classifier.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestRootCmd_PersistentPreRunE_BadLogLevel(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: shouting\n"), 0o644))

	old := cfg
	t.Cleanup(func() { cfg = old })
	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRootCmd_PersistentPreRunE_MalformedConfig(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed\n"), 0o644))

	old := cfg
	t.Cleanup(func() { cfg = old })
	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
