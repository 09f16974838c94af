// Package config provides configuration loading and path management.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths locates Cerise's on-disk layout under a single data directory, per
// spec §6: data_dir/config.yaml, data_dir/providers.yaml,
// data_dir/plugins.json, data_dir/characters/<name>.yaml,
// data_dir/plugins/<name>/. This is a single-root layout rather than the
// teacher's four-way XDG split (Data/Config/Cache/State), since every file
// the spec names hangs off one data_dir.
type Paths struct {
	Data string
}

// DefaultDataDir resolves the data directory: CERISE_DATA_DIR if set,
// otherwise an XDG-style default under the user's home.
func DefaultDataDir() string {
	if dir := os.Getenv("CERISE_DATA_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(defaultDataHome(), "cerise")
}

// GetPaths returns the Paths rooted at the default data directory.
func GetPaths() *Paths {
	return &Paths{Data: DefaultDataDir()}
}

// NewPaths returns Paths rooted at an explicit data directory.
func NewPaths(dataDir string) *Paths {
	return &Paths{Data: dataDir}
}

// EnsurePaths creates the data directory and its characters/plugins
// subdirectories if they don't already exist.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.CharactersDir(), p.PluginsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (p *Paths) ConfigFile() string    { return filepath.Join(p.Data, "config.yaml") }
func (p *Paths) ProvidersFile() string { return filepath.Join(p.Data, "providers.yaml") }
func (p *Paths) PluginsFile() string   { return filepath.Join(p.Data, "plugins.json") }
func (p *Paths) CharactersDir() string { return filepath.Join(p.Data, "characters") }
func (p *Paths) PluginsDir() string    { return filepath.Join(p.Data, "plugins") }
func (p *Paths) StateFile() string     { return filepath.Join(p.Data, "state.json") }
func (p *Paths) MemoryDBFile() string  { return filepath.Join(p.Data, "memory.db") }

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}
