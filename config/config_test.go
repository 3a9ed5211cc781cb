package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvProvider, EnvAPIKey, EnvModel, EnvBaseURL, EnvTemperature, EnvMaxTokens} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(LoadOptions{HomeDir: t.TempDir(), WorkDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, DefaultTemperature, cfg.Temperature)
	assert.Equal(t, int64(DefaultMaxTokens), cfg.MaxTokens)
	assert.Equal(t, DefaultPasteThreshold, cfg.PasteThreshold)
	assert.Contains(t, cfg.FilesystemAccess.Hidden, ".they/**")
	assert.Empty(t, cfg.Sources)
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	home, wd := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(home, ".they", "config.yaml"), `
provider: openai
model: user-model
temperature: 0.2
filesystem_access:
  hidden: ["secrets/**"]
`)
	writeFile(t, filepath.Join(wd, ".they", "config.yaml"), `
model: project-model
allowed_commands: ["^go "]
`)
	writeFile(t, filepath.Join(wd, ".env"), "API_KEY=from-dotenv\nMAX_TOKENS=2048\nMODEL=dotenv-model\n")
	t.Setenv(EnvModel, "env-model")

	cfg, err := Load(LoadOptions{HomeDir: home, WorkDir: wd})
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "env-model", cfg.Model, "process environment wins over .env")
	assert.Equal(t, "from-dotenv", cfg.APIKey)
	assert.Equal(t, int64(2048), cfg.MaxTokens)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, []string{"^go "}, cfg.AllowedCommands)
	assert.Contains(t, cfg.FilesystemAccess.Hidden, "secrets/**")
	assert.Contains(t, cfg.FilesystemAccess.Hidden, ".they")
	assert.Len(t, cfg.Sources, 3)
	require.NoError(t, cfg.Validate())
}

func TestLoadExplicitEnvFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load(LoadOptions{HomeDir: t.TempDir(), WorkDir: t.TempDir(), EnvFile: "/nonexistent/.env"})
	assert.Error(t, err)
}

func TestLoadMalformedNumbers(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"temperature", EnvTemperature, "hot"},
		{"max tokens", EnvMaxTokens, "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(LoadOptions{HomeDir: t.TempDir(), WorkDir: t.TempDir()})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantMsg string
	}{
		{"all missing", Config{MaxTokens: 1}, "PROVIDER, API_KEY, MODEL required. Set in .env or as environment variables."},
		{"key missing", Config{Provider: "anthropic", Model: "m", MaxTokens: 1}, "API_KEY required. Set in .env or as environment variables."},
		{"bedrock needs no key", Config{Provider: "bedrock", Model: "m", MaxTokens: 1}, ""},
		{"complete", Config{Provider: "openai", Model: "m", APIKey: "k", MaxTokens: 1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, DefaultMaxIterations, tt.cfg.MaxIterations)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingSetting))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}
