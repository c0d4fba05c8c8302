package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")
	t.Setenv("DATCOM_API_KEY", "env-dc-key")
	t.Setenv("DCAGENT_MODEL", "gemini-2.5-flash")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "env-gemini-key", cfg.LLM.APIKey)
	assert.Equal(t, "env-dc-key", cfg.DataCommons.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
}

func TestEnvOverridesFileValues(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  api_key: file-key
  model: gemini-2.0-flash
datacommons:
  api_key: file-dc-key
  base_url: https://example.org/v2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("GEMINI_API_KEY", "env-wins")
	t.Setenv("DATCOM_BASE_URL", "https://override.example.org/v2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-wins", cfg.LLM.APIKey)
	assert.Equal(t, "https://override.example.org/v2", cfg.DataCommons.BaseURL)

	// Values without env counterparts keep the file's settings.
	assert.Equal(t, "file-dc-key", cfg.DataCommons.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
}

func TestEmptyEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: file-key\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
}
