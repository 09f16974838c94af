package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vmoranv/cerise/pkg/types"
)

// Load loads Cerise configuration from multiple sources (priority order):
//  1. Global config (the default, XDG-style data directory)
//  2. dataDir's config.yaml/providers.yaml/characters/*.yaml, if dataDir
//     differs from the global default - the "project override" layer
//  3. Environment variables (CERISE_*)
//
// A .env file in the working directory is loaded first via godotenv, so its
// values are visible to step 3 and to ${VAR} expansion in providers.yaml.
func Load(dataDir string) (*types.Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	config := &types.Config{
		Provider:   make(map[string]types.ProviderConfig),
		Agent:      make(map[string]types.AgentConfig),
		Capability: make(map[string]types.CapabilityEntry),
	}

	globalPaths := GetPaths()
	loadDataDir(globalPaths, config)

	if dataDir != "" && dataDir != globalPaths.Data {
		loadDataDir(NewPaths(dataDir), config)
	}

	applyEnvOverrides(config)

	if config.DataDir == "" {
		if dataDir != "" {
			config.DataDir = dataDir
		} else {
			config.DataDir = globalPaths.Data
		}
	}

	return config, nil
}

// loadDataDir merges config.yaml, providers.yaml, and characters/*.yaml
// found under paths.Data into config. Missing files are skipped, not
// errors - a fresh install has none of them yet.
func loadDataDir(paths *Paths, config *types.Config) {
	loadConfigYAML(paths.ConfigFile(), config)
	loadProvidersYAML(paths.ProvidersFile(), config)
	loadCharacters(paths.CharactersDir(), config)
}

func loadConfigYAML(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileConfig types.Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// providersFile is providers.yaml's on-disk shape: provider configs keyed by
// provider id under a top-level "provider:" key, matching opencode's
// provider-map convention. loadProvidersYAML also accepts a bare id->config
// map with no "provider:" key.
type providersFile struct {
	Provider map[string]types.ProviderConfig `yaml:"provider"`
}

// loadProvidersYAML loads providers.yaml and expands ${VAR} references in
// every string field via os.Expand, so API keys never sit in plaintext on
// disk (spec §6, "Environment variables").
func loadProvidersYAML(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	// A providers.yaml with no top-level "provider:" key is itself a bare
	// id->config map.
	if len(file.Provider) == 0 {
		var bare map[string]types.ProviderConfig
		if err := yaml.Unmarshal(data, &bare); err == nil {
			file.Provider = bare
		}
	}

	if config.Provider == nil {
		config.Provider = make(map[string]types.ProviderConfig)
	}
	for id, p := range file.Provider {
		config.Provider[id] = expandProviderConfig(p)
	}
	return nil
}

func expandProviderConfig(p types.ProviderConfig) types.ProviderConfig {
	p.APIKey = os.Expand(p.APIKey, envLookup)
	p.BaseURL = os.Expand(p.BaseURL, envLookup)
	p.Model = os.Expand(p.Model, envLookup)
	return p
}

func envLookup(name string) string {
	return os.Getenv(name)
}

// loadCharacters loads every characters/<name>.yaml into config.Agent,
// keyed by the file's base name (without extension).
func loadCharacters(dir string, config *types.Config) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	if config.Agent == nil {
		config.Agent = make(map[string]types.AgentConfig)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var agent types.AgentConfig
		if err := yaml.Unmarshal(data, &agent); err != nil {
			continue
		}
		config.Agent[strings.TrimSuffix(name, ext)] = agent
	}
	return nil
}

// mergeConfig merges source config into target, overwriting scalars and
// combining maps - opencode's shallow field-by-field overwrite strategy.
func mergeConfig(target, source *types.Config) {
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SmallModel != "" {
		target.SmallModel = source.SmallModel
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.Server.Host != "" {
		target.Server.Host = source.Server.Host
	}
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.Debug {
		target.Server.Debug = true
	}
	if source.Admin.Token != "" {
		target.Admin.Token = source.Admin.Token
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.Agent != nil {
		if target.Agent == nil {
			target.Agent = make(map[string]types.AgentConfig)
		}
		for k, v := range source.Agent {
			target.Agent[k] = v
		}
	}

	if source.Capability != nil {
		if target.Capability == nil {
			target.Capability = make(map[string]types.CapabilityEntry)
		}
		for k, v := range source.Capability {
			target.Capability[k] = v
		}
	}

	if source.Memory != (types.MemoryConfig{}) {
		target.Memory = source.Memory
	}
	if source.Proactive.Enabled || len(source.Proactive.Sessions) > 0 {
		target.Proactive = source.Proactive
	}
}

// applyEnvOverrides applies CERISE_* environment variable overrides, the
// same precedence-topping role opencode's applyEnvOverrides gives
// ANTHROPIC_API_KEY etc.
func applyEnvOverrides(config *types.Config) {
	if dir := os.Getenv("CERISE_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if host := os.Getenv("CERISE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("CERISE_SERVER_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Server.Port = n
		}
	}
	if debug := os.Getenv("CERISE_SERVER_DEBUG"); debug != "" {
		if b, err := strconv.ParseBool(debug); err == nil {
			config.Server.Debug = b
		}
	}
	if level := os.Getenv("CERISE_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if token := os.Getenv("CERISE_ADMIN_TOKEN"); token != "" {
		config.Admin.Token = token
	}
}

// Save writes config as YAML to path, creating parent directories as needed.
func Save(config *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
