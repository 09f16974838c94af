package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vmoranv/cerise/pkg/types"
)

func TestKeywordOverlapScorer(t *testing.T) {
	scorer := KeywordOverlapScorer{}
	record := types.MemoryRecord{Content: "the cat sat on the mat"}

	assert.InDelta(t, 0.5, scorer.Score("cat dog", record, time.Now()), 1e-9)
	assert.Equal(t, 0.0, scorer.Score("", record, time.Now()))
}

func TestRecencyScorerDecaysByHalfLife(t *testing.T) {
	scorer := RecencyScorer{HalfLife: time.Minute, Weight: 1.0}
	now := time.Now()
	record := types.MemoryRecord{CreatedAt: now.Add(-time.Minute).Unix()}

	assert.InDelta(t, 0.5, scorer.Score("", record, now), 0.02)
}

func TestImportanceScorerClampsAndWeights(t *testing.T) {
	scorer := ImportanceScorer{Weight: 0.15}
	record := types.MemoryRecord{Metadata: types.MemoryMetadata{Importance: 200}}

	assert.InDelta(t, 0.15, scorer.Score("", record, time.Now()), 1e-9, "importance above 100 clamps to 1.0")
}

func TestEmotionImpactScorerTakesMax(t *testing.T) {
	scorer := EmotionImpactScorer{Weight: 0.1}
	record := types.MemoryRecord{
		Metadata: types.MemoryMetadata{
			EmotionalImpact: 20,
			Emotion:         &types.EmotionSnapshot{Label: "joy", Intensity: 0.9},
		},
	}

	assert.InDelta(t, 0.09, scorer.Score("", record, time.Now()), 1e-9)
}

func TestReinforcementScorerCapsAccessCount(t *testing.T) {
	scorer := ReinforcementScorer{Weight: 0.05, MaxAccessCount: 20}

	atCap := types.MemoryRecord{Metadata: types.MemoryMetadata{AccessCount: 40}}
	assert.InDelta(t, 0.05, scorer.Score("", atCap, time.Now()), 1e-9)

	none := types.MemoryRecord{Metadata: types.MemoryMetadata{AccessCount: 0}}
	assert.Equal(t, 0.0, scorer.Score("", none, time.Now()))
}

func TestApplyScorersAddsMeanBonus(t *testing.T) {
	results := []types.MemoryResult{
		{Record: types.MemoryRecord{Content: "cat"}, Score: 1.0},
	}
	scorers := []Scorer{constantScorer{0.2}, constantScorer{0.4}}

	applyScorers(results, "cat", scorers, time.Now())

	assert.InDelta(t, 1.3, results[0].Score, 1e-9)
}

type constantScorer struct{ value float64 }

func (c constantScorer) Name() string { return "constant" }
func (c constantScorer) Score(string, types.MemoryRecord, time.Time) float64 { return c.value }
