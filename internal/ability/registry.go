package ability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vmoranv/cerise/internal/logging"
	"github.com/vmoranv/cerise/pkg/types"
)

// Ability is anything that can be registered and invoked through the
// registry: a builtin Go function, a plugin-owned handler, or an MCP tool
// bridged in by the MCP manager.
type Ability interface {
	Info() types.AbilityInfo
	Execute(ctx context.Context, params json.RawMessage, actx types.AbilityContext) (*types.AbilityResult, error)
}

// Registry is the process-wide keyed collection of abilities described in
// §4.3. register overwrites on duplicate name and logs a warning; execute
// runs the permission check before invoking. Parameters are passed through
// to the ability unvalidated; the registry has no validation hook.
type Registry struct {
	mu        sync.RWMutex
	abilities map[string]Ability
	log       *zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	l := logging.Logger.With().Str("component", "ability.registry").Logger()
	return &Registry{
		abilities: make(map[string]Ability),
		log:       &l,
	}
}

// Register adds ability under its Info().Name, overwriting any prior
// registration under that name with a warning.
func (r *Registry) Register(a Ability) {
	name := a.Info().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.abilities[name]; exists {
		r.log.Warn().Str("ability", name).Msg("overwriting existing ability registration")
	}
	r.abilities[name] = a
}

// Unregister removes an ability by name. Idempotent: returns false if it
// was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.abilities[name]; !ok {
		return false
	}
	delete(r.abilities, name)
	return true
}

// Get returns the ability registered under name, if any.
func (r *Registry) Get(name string) (Ability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.abilities[name]
	return a, ok
}

// Infos returns the static description of every registered ability, sorted
// by name for deterministic output.
func (r *Registry) Infos() []types.AbilityInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]types.AbilityInfo, 0, len(r.abilities))
	for _, a := range r.abilities {
		infos = append(infos, a.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Execute performs the permission check (every entry in the ability's
// RequiredPermissions must appear in actx.Permissions), then invokes the
// ability. Errors from Execute are captured and returned as a failed
// AbilityResult rather than propagated; a missing ability yields a
// not-found AbilityResult.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage, actx types.AbilityContext) *types.AbilityResult {
	a, ok := r.Get(name)
	if !ok {
		return &types.AbilityResult{Success: false, Error: fmt.Sprintf("Ability '%s' not found", name)}
	}

	info := a.Info()
	for _, perm := range info.RequiredPermissions {
		if !actx.HasPermission(perm) {
			return &types.AbilityResult{
				Success: false,
				Error:   fmt.Sprintf("missing required permission '%s' for ability '%s'", perm, name),
			}
		}
	}

	result, err := a.Execute(ctx, params, actx)
	if err != nil {
		return &types.AbilityResult{Success: false, Error: err.Error()}
	}
	if result == nil {
		return &types.AbilityResult{Success: true}
	}
	return result
}
