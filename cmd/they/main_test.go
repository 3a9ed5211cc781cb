package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/m4xw311/they/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config lookups at empty directories and clears the
// environment variables config reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	for _, name := range []string{
		config.EnvProvider, config.EnvAPIKey, config.EnvModel,
		config.EnvBaseURL, config.EnvTemperature, config.EnvMaxTokens,
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	return dir
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	dir := isolate(t)
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("PROVIDER=openai\nMODEL=gpt-x\nAPI_KEY=k\n"), 0o600))

	cfg, err := loadConfig(options{envFile: env, provider: "openrouter", model: "anthropic/claude"})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, "anthropic/claude", cfg.Model)
	assert.Equal(t, "k", cfg.APIKey)
}

func TestLoadConfigMissingSettings(t *testing.T) {
	isolate(t)

	_, err := loadConfig(options{})
	require.ErrorIs(t, err, config.ErrMissingSetting)
	assert.Equal(t, "PROVIDER, API_KEY, MODEL required. Set in .env or as environment variables.", err.Error())
}

func TestLoadConfigMockNeedsNoKey(t *testing.T) {
	isolate(t)

	cfg, err := loadConfig(options{provider: "mock", model: "echo"})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPasteThreshold, cfg.PasteThreshold)
}

func TestNewLoggerTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "they.log")

	logger, err := newLogger(options{trace: true, verbose: true, logFile: path})
	require.NoError(t, err)
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewLoggerDefaultIsNop(t *testing.T) {
	logger, err := newLogger(options{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}
