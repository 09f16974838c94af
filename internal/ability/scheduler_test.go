package ability

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmoranv/cerise/pkg/types"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func newTestRegistry(names ...string) *Registry {
	r := NewRegistry()
	for _, n := range names {
		r.Register(stubAbility{
			info: types.AbilityInfo{Name: n},
			fn: func(ctx context.Context, params json.RawMessage, actx types.AbilityContext) (*types.AbilityResult, error) {
				return &types.AbilityResult{Success: true}, nil
			},
		})
	}
	return r
}

func TestSchedulerDefaultsApply(t *testing.T) {
	r := newTestRegistry("webfetch")
	s := NewScheduler(r, true, true, nil)

	d := s.Resolve("webfetch")
	assert.True(t, d.Enabled)
	assert.True(t, d.AllowTools)
	assert.Equal(t, 0, d.Priority)
}

func TestSchedulerPerAbilityOverride(t *testing.T) {
	r := newTestRegistry("risky")
	s := NewScheduler(r, true, true, nil)
	s.SetOverride("risky", types.CapabilityEntry{Enabled: boolPtr(false), Priority: intPtr(5)})

	d := s.Resolve("risky")
	assert.False(t, d.Enabled)
	assert.Equal(t, 5, d.Priority)
}

func TestSchedulerStarANDFold(t *testing.T) {
	r := newTestRegistry("search")
	owner := func(ability string) (string, bool) {
		if ability == "search" {
			return "acme-plugin", true
		}
		return "", false
	}
	s := NewScheduler(r, true, true, owner)
	s.SetStar("acme-plugin", types.StarEntry{Enabled: true, AllowTools: false})

	d := s.Resolve("search")
	assert.True(t, d.Enabled)
	assert.False(t, d.AllowTools, "plugin-level allow_tools=false must AND-fold onto base")
}

func TestSchedulerPerAbilityToggleWithinStar(t *testing.T) {
	r := newTestRegistry("search")
	owner := func(ability string) (string, bool) { return "acme-plugin", true }
	s := NewScheduler(r, true, true, owner)
	s.SetStar("acme-plugin", types.StarEntry{
		Enabled:    true,
		AllowTools: true,
		Abilities:  map[string]types.Toggle{"search": {Enabled: boolPtr(false)}},
	})

	d := s.Resolve("search")
	assert.False(t, d.Enabled)
}

func TestSchedulerToolSchemasSortedByPriorityDescending(t *testing.T) {
	r := newTestRegistry("low", "high", "mid")
	s := NewScheduler(r, true, true, nil)
	s.SetOverride("low", types.CapabilityEntry{Priority: intPtr(1)})
	s.SetOverride("mid", types.CapabilityEntry{Priority: intPtr(5)})
	s.SetOverride("high", types.CapabilityEntry{Priority: intPtr(10)})

	schemas := s.ToolSchemas()
	names := make([]string, len(schemas))
	for i, info := range schemas {
		names[i] = info.Name
	}
	assert.Equal(t, []string{"high", "mid", "low"}, names)
}

func TestSchedulerToolSchemasExcludesGatedOff(t *testing.T) {
	r := newTestRegistry("on", "off")
	s := NewScheduler(r, true, true, nil)
	s.SetOverride("off", types.CapabilityEntry{Enabled: boolPtr(false)})

	schemas := s.ToolSchemas()
	assert.Len(t, schemas, 1)
	assert.Equal(t, "on", schemas[0].Name)
}

func TestSchedulerExecuteDisabledShortCircuits(t *testing.T) {
	r := newTestRegistry("off")
	s := NewScheduler(r, true, true, nil)
	s.SetOverride("off", types.CapabilityEntry{Enabled: boolPtr(false)})

	result := s.Execute(context.Background(), "off", nil, types.AbilityContext{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "disabled")
}

func TestSchedulerRemoveStarResetsToBase(t *testing.T) {
	r := newTestRegistry("search")
	owner := func(ability string) (string, bool) { return "acme-plugin", true }
	s := NewScheduler(r, true, true, owner)
	s.SetStar("acme-plugin", types.StarEntry{Enabled: false, AllowTools: false})
	assert.False(t, s.Resolve("search").Enabled)

	s.RemoveStar("acme-plugin")
	assert.True(t, s.Resolve("search").Enabled)
}
