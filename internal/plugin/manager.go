// Package plugin implements the Plugin Manager described in §4.4:
// discovery of plugin directories, manifest-driven load/unload/reload, and
// ownership tracking from ability name to owning plugin so the Capability
// Scheduler can resolve per-plugin star policy.
//
// A Cerise plugin is a subprocess speaking the stdio MCP transport
// (internal/mcp.StdioClient): on load the Manager spawns the manifest's
// runtime command, lists its tools, and bridges each one into the shared
// Ability Registry via mcp.NewBridgedAbility, named through
// mcp.SanitizeToolName under a "mcp_<plugin>__" prefix.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/internal/cerr"
	"github.com/vmoranv/cerise/internal/logging"
	"github.com/vmoranv/cerise/internal/mcp"
	"github.com/vmoranv/cerise/pkg/types"
)

// loadedPlugin tracks one running plugin instance.
type loadedPlugin struct {
	manifest  types.PluginManifest
	config    map[string]any
	client    *mcp.StdioClient
	abilities []string // ability names registered for this plugin
}

// Manager is the process-wide plugin lifecycle tracker.
type Manager struct {
	mu         sync.RWMutex
	pluginsDir string
	registry   *ability.Registry
	loaded     map[string]*loadedPlugin
	owners     map[string]string // ability name -> plugin name
	log        *zerolog.Logger
}

// NewManager builds a Manager rooted at pluginsDir, registering bridged
// abilities into registry.
func NewManager(pluginsDir string, registry *ability.Registry) *Manager {
	l := logging.Logger.With().Str("component", "plugin.manager").Logger()
	return &Manager{
		pluginsDir: pluginsDir,
		registry:   registry,
		loaded:     make(map[string]*loadedPlugin),
		owners:     make(map[string]string),
		log:        &l,
	}
}

// Owner implements ability.OwnerLookup: resolves the plugin owning a given
// ability name, if any.
func (m *Manager) Owner(abilityName string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.owners[abilityName]
	return p, ok
}

// Discover scans pluginsDir for subdirectories containing manifest.json,
// skipping entries whose name starts with "_".
func (m *Manager) Discover() ([]string, error) {
	entries, err := os.ReadDir(m.pluginsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cerr.New(cerr.Transport, "plugin.Discover", err)
	}

	var manifests []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		manifestPath := filepath.Join(m.pluginsDir, e.Name(), "manifest.json")
		if _, err := os.Stat(manifestPath); err == nil {
			manifests = append(manifests, manifestPath)
		}
	}
	return manifests, nil
}

// readManifest loads and validates the required fields of a manifest.json.
// manifest.json may carry // and /* */ comments; jsonc.ToJSON strips them
// before encoding/json ever sees the bytes, same as a hand-authored
// providers.yaml entry documenting its own fields inline.
func readManifest(path string) (types.PluginManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.PluginManifest{}, cerr.New(cerr.Transport, "plugin.readManifest", err)
	}
	var manifest types.PluginManifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return types.PluginManifest{}, cerr.New(cerr.Corruption, "plugin.readManifest", err)
	}
	if manifest.Name == "" || manifest.Version == "" || manifest.EntryPoint == "" || manifest.ClassName == "" {
		return types.PluginManifest{}, cerr.New(cerr.InvalidArgument, "plugin.readManifest",
			fmt.Errorf("manifest missing required field(s) among {name, version, entry_point, class_name}"))
	}
	return manifest, nil
}

// Load validates manifestPath, spawns the plugin's runtime command, lists
// its tools, and registers each as a bridged Ability. On any failure the
// registry is left unchanged and the failure is logged, per §4.4.
func (m *Manager) Load(ctx context.Context, manifestPath string, userConfig map[string]any) error {
	manifest, err := readManifest(manifestPath)
	if err != nil {
		m.log.Warn().Err(err).Str("manifest", manifestPath).Msg("plugin load failed: invalid manifest")
		return err
	}

	m.mu.RLock()
	_, alreadyLoaded := m.loaded[manifest.Name]
	m.mu.RUnlock()
	if alreadyLoaded {
		return cerr.New(cerr.FailedPrecondition, "plugin.Load", fmt.Errorf("plugin %q already loaded", manifest.Name))
	}

	if manifest.Runtime == nil || manifest.Runtime.Transport != "stdio" {
		err := cerr.New(cerr.InvalidArgument, "plugin.Load", fmt.Errorf("plugin %q: only stdio runtime transport is supported", manifest.Name))
		m.log.Warn().Err(err).Msg("plugin load failed")
		return err
	}

	pluginDir := filepath.Dir(manifestPath)
	command := strings.Fields(manifest.Runtime.Entry)
	if len(command) == 0 {
		err := cerr.New(cerr.InvalidArgument, "plugin.Load", fmt.Errorf("plugin %q: empty runtime entry command", manifest.Name))
		m.log.Warn().Err(err).Msg("plugin load failed")
		return err
	}
	if !filepath.IsAbs(command[0]) {
		command[0] = filepath.Join(pluginDir, command[0])
	}

	client, err := mcp.NewStdioClient(ctx, manifest.Name, command, nil)
	if err != nil {
		m.log.Warn().Err(err).Str("plugin", manifest.Name).Msg("plugin load failed: spawn error")
		return err
	}
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		m.log.Warn().Err(err).Str("plugin", manifest.Name).Msg("plugin load failed: initialize handshake")
		return err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		m.log.Warn().Err(err).Str("plugin", manifest.Name).Msg("plugin load failed: tools/list")
		return err
	}

	lp := &loadedPlugin{manifest: manifest, config: userConfig, client: client}
	for _, t := range tools {
		localName := mcp.SanitizeToolName(manifest.Name, t.Name)
		a := mcp.NewBridgedAbility(localName, t.Name, t.Description, t.InputSchema, client)
		m.registry.Register(a)
		lp.abilities = append(lp.abilities, localName)
	}

	m.mu.Lock()
	m.loaded[manifest.Name] = lp
	for _, name := range lp.abilities {
		m.owners[name] = manifest.Name
	}
	m.mu.Unlock()

	m.log.Info().Str("plugin", manifest.Name).Int("abilities", len(lp.abilities)).Msg("plugin loaded")
	return nil
}

// Unload closes the plugin's subprocess and unregisters its abilities.
// Idempotent: returns false if the plugin was not loaded.
func (m *Manager) Unload(name string) bool {
	m.mu.Lock()
	lp, ok := m.loaded[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.loaded, name)
	for _, a := range lp.abilities {
		delete(m.owners, a)
	}
	m.mu.Unlock()

	for _, a := range lp.abilities {
		m.registry.Unregister(a)
	}
	_ = lp.client.Close()
	m.log.Info().Str("plugin", name).Msg("plugin unloaded")
	return true
}

// Reload preserves the plugin's runtime config across an unload+load cycle.
func (m *Manager) Reload(ctx context.Context, name, manifestPath string) error {
	m.mu.RLock()
	lp, ok := m.loaded[name]
	m.mu.RUnlock()

	var cfg map[string]any
	if ok {
		cfg = lp.config
	}
	m.Unload(name)
	return m.Load(ctx, manifestPath, cfg)
}

// Loaded reports whether name is currently loaded.
func (m *Manager) Loaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loaded[name]
	return ok
}

// LoadedNames returns the names of all currently loaded plugins.
func (m *Manager) LoadedNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.loaded))
	for n := range m.loaded {
		names = append(names, n)
	}
	return names
}
