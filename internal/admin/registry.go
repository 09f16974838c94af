package admin

import (
	"sync"

	"github.com/vmoranv/cerise/internal/state"
	"github.com/vmoranv/cerise/pkg/types"
)

// Registry persists the installed-plugin list (plugins.json's in-process
// equivalent) behind the shared state.Store, namespaced so it can live
// alongside every other component's state without key collisions.
type Registry struct {
	mu    sync.Mutex
	store *state.NamespaceView
}

func NewRegistry(store *state.NamespaceView) *Registry {
	return &Registry{store: store}
}

const installedKey = "installed"

// Add appends or replaces (by name) an InstalledPlugin row.
func (r *Registry) Add(p types.InstalledPlugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugins := r.listLocked()
	replaced := false
	for i, existing := range plugins {
		if existing.Name == p.Name {
			plugins[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		plugins = append(plugins, p)
	}
	return r.store.Set(installedKey, plugins)
}

// List returns every installed plugin row.
func (r *Registry) List() []types.InstalledPlugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []types.InstalledPlugin {
	var plugins []types.InstalledPlugin
	if ok, err := r.store.Get(installedKey, &plugins); err != nil || !ok {
		return nil
	}
	return plugins
}

// SetEnabled flips a plugin's enabled flag, returning false if name isn't found.
func (r *Registry) SetEnabled(name string, enabled bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plugins := r.listLocked()
	found := false
	for i, p := range plugins {
		if p.Name == name {
			plugins[i].Enabled = enabled
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	return true, r.store.Set(installedKey, plugins)
}
