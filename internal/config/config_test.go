package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/pkg/types"
)

// withTempHome isolates HOME (and therefore the default data directory) to
// a temp dir so the global config layer can't pick up a developer's real
// ~/.local/share/cerise.
func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	oldHome := os.Getenv("HOME")
	oldXDG := os.Getenv("XDG_DATA_HOME")
	os.Setenv("HOME", tmp)
	os.Unsetenv("XDG_DATA_HOME")
	t.Cleanup(func() {
		os.Setenv("HOME", oldHome)
		if oldXDG != "" {
			os.Setenv("XDG_DATA_HOME", oldXDG)
		}
	})
	return tmp
}

func TestLoadReadsConfigYAML(t *testing.T) {
	withTempHome(t)
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(dataDir, 0755))

	yamlContent := `
model: anthropic/claude-sonnet-4
small_model: anthropic/claude-3-5-haiku
log_level: debug
server:
  host: 0.0.0.0
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte(yamlContent), 0644))

	cfg, err := Load(dataDir)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4", cfg.Model)
	assert.Equal(t, "anthropic/claude-3-5-haiku", cfg.SmallModel)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadExpandsProviderEnvVars(t *testing.T) {
	withTempHome(t)
	dataDir := t.TempDir()

	os.Setenv("CERISE_TEST_API_KEY", "sk-test-secret")
	t.Cleanup(func() { os.Unsetenv("CERISE_TEST_API_KEY") })

	providersYAML := `
provider:
  anthropic:
    api_key: "${CERISE_TEST_API_KEY}"
    model: claude-sonnet-4
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "providers.yaml"), []byte(providersYAML), 0644))

	cfg, err := Load(dataDir)
	require.NoError(t, err)
	require.Contains(t, cfg.Provider, "anthropic")
	assert.Equal(t, "sk-test-secret", cfg.Provider["anthropic"].APIKey)
	assert.Equal(t, "claude-sonnet-4", cfg.Provider["anthropic"].Model)
}

func TestLoadMergesCharacterFiles(t *testing.T) {
	withTempHome(t)
	dataDir := t.TempDir()
	charactersDir := filepath.Join(dataDir, "characters")
	require.NoError(t, os.MkdirAll(charactersDir, 0755))

	temp := 0.8
	characterYAML := `
model: anthropic/claude-sonnet-4
temperature: 0.8
prompt: "You are Cerise, a cheerful assistant."
`
	require.NoError(t, os.WriteFile(filepath.Join(charactersDir, "cerise.yaml"), []byte(characterYAML), 0644))

	cfg, err := Load(dataDir)
	require.NoError(t, err)
	require.Contains(t, cfg.Agent, "cerise")
	assert.Equal(t, "anthropic/claude-sonnet-4", cfg.Agent["cerise"].Model)
	require.NotNil(t, cfg.Agent["cerise"].Temperature)
	assert.Equal(t, temp, *cfg.Agent["cerise"].Temperature)
	assert.Contains(t, cfg.Agent["cerise"].Prompt, "Cerise")
}

func TestLoadEnvOverridesBeatFileConfig(t *testing.T) {
	withTempHome(t)
	dataDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte("log_level: info\n"), 0644))

	os.Setenv("CERISE_LOG_LEVEL", "warn")
	os.Setenv("CERISE_ADMIN_TOKEN", "env-token")
	t.Cleanup(func() {
		os.Unsetenv("CERISE_LOG_LEVEL")
		os.Unsetenv("CERISE_ADMIN_TOKEN")
	})

	cfg, err := Load(dataDir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "env-token", cfg.Admin.Token)
}

func TestLoadMissingFilesProducesDefaults(t *testing.T) {
	withTempHome(t)
	dataDir := t.TempDir()

	cfg, err := Load(dataDir)
	require.NoError(t, err)
	assert.Empty(t, cfg.Model)
	assert.NotNil(t, cfg.Provider)
	assert.NotNil(t, cfg.Agent)
	assert.Equal(t, dataDir, cfg.DataDir)
}

func TestSaveWritesYAMLRoundTrippableByLoad(t *testing.T) {
	withTempHome(t)
	dataDir := t.TempDir()

	original := &types.Config{Model: "anthropic/claude-sonnet-4", LogLevel: "debug"}

	cfgPath := filepath.Join(dataDir, "config.yaml")
	require.NoError(t, Save(original, cfgPath))

	loaded, err := Load(dataDir)
	require.NoError(t, err)
	assert.Equal(t, original.Model, loaded.Model)
	assert.Equal(t, original.LogLevel, loaded.LogLevel)
}

func TestPathsEnsurePathsCreatesLayout(t *testing.T) {
	withTempHome(t)
	dataDir := filepath.Join(t.TempDir(), "cerise-data")
	paths := NewPaths(dataDir)

	require.NoError(t, paths.EnsurePaths())
	assert.DirExists(t, paths.Data)
	assert.DirExists(t, paths.CharactersDir())
	assert.DirExists(t, paths.PluginsDir())
}
