package ability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/vmoranv/cerise/pkg/types"
)

// OwnerLookup resolves the plugin that owns an ability, if any. The Plugin
// Manager supplies the real implementation; nil means no ability is
// plugin-owned (every resolution stops at the global/per-ability levels).
type OwnerLookup func(ability string) (plugin string, ok bool)

// Scheduler resolves the per-ability CapabilityDecision described in §4.3:
// an AND-fold across global default, per-ability override, per-plugin star
// entry, and per-ability toggle within that plugin's star entry.
type Scheduler struct {
	mu         sync.RWMutex
	registry   *Registry
	defEnabled bool
	defAllow   bool
	overrides  map[string]types.CapabilityEntry
	stars      map[string]types.StarEntry
	owner      OwnerLookup
}

// NewScheduler builds a Scheduler backed by registry. defEnabled/defAllow
// are the global defaults (base.enabled / base.allow_tools before any
// override is applied).
func NewScheduler(registry *Registry, defEnabled, defAllow bool, owner OwnerLookup) *Scheduler {
	return &Scheduler{
		registry:   registry,
		defEnabled: defEnabled,
		defAllow:   defAllow,
		overrides:  make(map[string]types.CapabilityEntry),
		stars:      make(map[string]types.StarEntry),
		owner:      owner,
	}
}

// SetOverride installs a per-ability global policy override (step 2).
func (s *Scheduler) SetOverride(ability string, entry types.CapabilityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[ability] = entry
}

// SetStar installs a per-plugin star entry (step 3).
func (s *Scheduler) SetStar(plugin string, entry types.StarEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stars[plugin] = entry
}

// RemoveStar drops a plugin's star entry, e.g. when the plugin unloads.
func (s *Scheduler) RemoveStar(plugin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stars, plugin)
}

// Resolve computes the CapabilityDecision for ability per §4.3's four
// steps: base from global config, per-ability override replaces base,
// owning-plugin star entry and its per-ability toggle AND-fold onto it.
func (s *Scheduler) Resolve(ability string) types.CapabilityDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	base := types.CapabilityDecision{Enabled: s.defEnabled, AllowTools: s.defAllow, Priority: 0}
	if ov, ok := s.overrides[ability]; ok {
		if ov.Enabled != nil {
			base.Enabled = *ov.Enabled
		}
		if ov.AllowTools != nil {
			base.AllowTools = *ov.AllowTools
		}
		if ov.Priority != nil {
			base.Priority = *ov.Priority
		}
	}

	enabled, allowTools := base.Enabled, base.AllowTools
	if s.owner != nil {
		if plugin, ok := s.owner(ability); ok {
			if star, ok := s.stars[plugin]; ok {
				enabled = enabled && star.Enabled
				allowTools = allowTools && star.AllowTools
				if toggle, ok := star.Abilities[ability]; ok {
					if toggle.Enabled != nil {
						enabled = enabled && *toggle.Enabled
					}
					if toggle.AllowTools != nil {
						allowTools = allowTools && *toggle.AllowTools
					}
				}
			}
		}
	}

	return types.CapabilityDecision{Enabled: enabled, AllowTools: allowTools, Priority: base.Priority}
}

// ToolSchemas returns the AbilityInfo of every ability whose resolved
// decision is enabled AND allow_tools, sorted by priority descending.
func (s *Scheduler) ToolSchemas() []types.AbilityInfo {
	infos := s.registry.Infos()
	type scored struct {
		info     types.AbilityInfo
		priority int
	}
	var visible []scored
	for _, info := range infos {
		d := s.Resolve(info.Name)
		if d.Enabled && d.AllowTools {
			visible = append(visible, scored{info: info, priority: d.Priority})
		}
	}
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].priority > visible[j].priority })

	out := make([]types.AbilityInfo, len(visible))
	for i, v := range visible {
		out[i] = v.info
	}
	return out
}

// Execute short-circuits with a disabled-error AbilityResult if ability is
// gated off, otherwise delegates to the underlying Registry.
func (s *Scheduler) Execute(ctx context.Context, name string, params json.RawMessage, actx types.AbilityContext) *types.AbilityResult {
	if !s.Resolve(name).Enabled {
		return &types.AbilityResult{Success: false, Error: fmt.Sprintf("ability '%s' disabled", name)}
	}
	return s.registry.Execute(ctx, name, params, actx)
}
