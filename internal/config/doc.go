// Package config provides configuration loading and path management for
// Cerise.
//
// # Configuration Loading
//
// Load implements a global -> project-override -> environment layering
// strategy, the same precedence shape opencode's config loader uses,
// retargeted at Cerise's on-disk layout:
//
//  1. Global config under the default data directory (XDG-style, or
//     CERISE_DATA_DIR)
//  2. An explicit dataDir's config.yaml/providers.yaml/characters/*.yaml,
//     when it differs from the global default
//  3. CERISE_* environment variables
//
// # File formats
//
// config.yaml and providers.yaml are plain YAML (gopkg.in/yaml.v3).
// Plugin manifests and the installed-plugin registry are JSON(C) - genuine
// machine-written records, not hand-edited settings - handled by
// internal/plugin, not this package.
//
// # Variable interpolation
//
// providers.yaml values (api_key, base_url, model) support ${VAR}
// expansion via os.Expand, applied once at load time, so secrets can live
// in the environment instead of on disk:
//
//	provider:
//	  anthropic:
//	    api_key: "${ANTHROPIC_API_KEY}"
//
// A .env file in the working directory, if present, is loaded first via
// github.com/joho/godotenv, so its values are visible both to ${VAR}
// expansion and to the CERISE_* overrides below.
//
// # Environment variable overrides
//
//   - CERISE_DATA_DIR - override the data directory location
//   - CERISE_SERVER_HOST / CERISE_SERVER_PORT / CERISE_SERVER_DEBUG -
//     admin HTTP surface listen settings
//   - CERISE_LOG_LEVEL - structured logger level
//   - CERISE_ADMIN_TOKEN - admin HTTP surface access token
//
// # Path management
//
// Paths resolves every on-disk location under one data directory:
// config.yaml, providers.yaml, plugins.json, characters/, plugins/.
//
// # Usage Example
//
//	cfg, err := config.Load(myDataDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	paths := config.NewPaths(cfg.DataDir)
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
package config
