package memorypipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/internal/state"
)

func TestLayerStoresPersistCoreFactHabitEvents(t *testing.T) {
	bus := event.New()
	layers := NewLayerStores(state.OpenMemory())
	layers.Attach(bus)

	sess := "s1"
	bus.PublishSync(contracts.NewMemoryCoreUpdated("test", "profile-1", "likes hiking", &sess))
	bus.PublishSync(contracts.NewMemoryFactUpserted("test", "fact-1", "s1", "bob", "works_at", "acme"))
	bus.PublishSync(contracts.NewMemoryHabitRecorded("test", "habit-1", "s1", "review", "check tests first"))

	profiles := layers.CoreProfiles("s1", 0)
	require.Len(t, profiles, 1)
	assert.Equal(t, "likes hiking", profiles[0].Summary)

	facts := layers.Facts("s1", 0)
	require.Len(t, facts, 1)
	assert.Equal(t, "bob", facts[0].Subject)

	habits := layers.Habits("s1", 0)
	require.Len(t, habits, 1)
	assert.Equal(t, "review", habits[0].TaskType)
}

func TestLayerStoresFilterBySession(t *testing.T) {
	bus := event.New()
	layers := NewLayerStores(state.OpenMemory())
	layers.Attach(bus)

	bus.PublishSync(contracts.NewMemoryFactUpserted("test", "fact-1", "s1", "bob", "works_at", "acme"))
	bus.PublishSync(contracts.NewMemoryFactUpserted("test", "fact-2", "s2", "alice", "likes", "coffee"))

	assert.Len(t, layers.Facts("s1", 0), 1)
	assert.Len(t, layers.Facts("s2", 0), 1)
	assert.Empty(t, layers.Facts("s3", 0))
}

func TestLayerStoresRespectLimit(t *testing.T) {
	bus := event.New()
	layers := NewLayerStores(state.OpenMemory())
	layers.Attach(bus)

	bus.PublishSync(contracts.NewMemoryFactUpserted("test", "fact-1", "s1", "a", "p", "o"))
	bus.PublishSync(contracts.NewMemoryFactUpserted("test", "fact-2", "s1", "b", "p", "o"))

	assert.Len(t, layers.Facts("s1", 1), 1)
}
