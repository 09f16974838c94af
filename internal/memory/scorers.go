package memory

import (
	"math"
	"time"

	"github.com/vmoranv/cerise/pkg/types"
)

// Scorer assigns an additive score contribution to a record given a query.
// Grounded on apps/core/ai/memory/scorers.py's MemoryScorer protocol.
type Scorer interface {
	Name() string
	Score(query string, record types.MemoryRecord, now time.Time) float64
}

// KeywordOverlapScorer rewards token overlap between query and content.
type KeywordOverlapScorer struct{}

func (KeywordOverlapScorer) Name() string { return "keyword_overlap" }

func (KeywordOverlapScorer) Score(query string, record types.MemoryRecord, _ time.Time) float64 {
	queryTokens := toSet(tokenize(query))
	if len(queryTokens) == 0 {
		return 0
	}
	overlap := len(intersect(queryTokens, toSet(tokenize(record.Content))))
	return float64(overlap) / float64(max(len(queryTokens), 1))
}

// RecencyScorer applies exponential half-life decay by age.
type RecencyScorer struct {
	HalfLife time.Duration
	Weight   float64
}

func (RecencyScorer) Name() string { return "recency" }

func (s RecencyScorer) Score(_ string, record types.MemoryRecord, now time.Time) float64 {
	ageSeconds := math.Max(now.Sub(time.Unix(record.CreatedAt, 0)).Seconds(), 0)
	halfLifeSeconds := math.Max(s.HalfLife.Seconds(), 1)
	decay := math.Pow(0.5, ageSeconds/halfLifeSeconds)
	return decay * s.Weight
}

// ImportanceScorer rewards high-importance records, importance in [0,100].
type ImportanceScorer struct {
	Weight float64
}

func (ImportanceScorer) Name() string { return "importance" }

func (s ImportanceScorer) Score(_ string, record types.MemoryRecord, _ time.Time) float64 {
	importance := clamp01(record.Metadata.Importance / 100.0)
	return importance * s.Weight
}

// EmotionImpactScorer rewards records with strong emotional signal, taking
// the max of the record's emotional_impact field and its attached emotion
// snapshot intensity.
type EmotionImpactScorer struct {
	Weight float64
}

func (EmotionImpactScorer) Name() string { return "emotion" }

func (s EmotionImpactScorer) Score(_ string, record types.MemoryRecord, _ time.Time) float64 {
	impactScore := clamp01(record.Metadata.EmotionalImpact / 100.0)
	emotionScore := 0.0
	if record.Metadata.Emotion != nil {
		emotionScore = clamp01(record.Metadata.Emotion.Intensity)
	}
	return math.Max(impactScore, emotionScore) * s.Weight
}

// ReinforcementScorer rewards frequently recalled records, capped at
// MaxAccessCount accesses.
type ReinforcementScorer struct {
	Weight         float64
	MaxAccessCount int
}

func (ReinforcementScorer) Name() string { return "reinforcement" }

func (s ReinforcementScorer) Score(_ string, record types.MemoryRecord, _ time.Time) float64 {
	if record.Metadata.AccessCount <= 0 {
		return 0
	}
	cap := s.MaxAccessCount
	if cap < 1 {
		cap = 1
	}
	ratio := float64(record.Metadata.AccessCount) / float64(cap)
	if ratio > 1 {
		ratio = 1
	}
	return ratio * s.Weight
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DefaultScorers builds the standard scoring plugin chain from cfg.
func DefaultScorers(cfg ScoringConfig) []Scorer {
	return []Scorer{
		KeywordOverlapScorer{},
		RecencyScorer{HalfLife: cfg.RecencyHalfLife, Weight: cfg.RecencyWeight},
		ImportanceScorer{Weight: cfg.ImportanceWeight},
		EmotionImpactScorer{Weight: cfg.EmotionWeight},
		ReinforcementScorer{Weight: cfg.ReinforcementWeight, MaxAccessCount: cfg.ReinforcementCap},
	}
}

// applyScorers adds the mean of every scorer's contribution to each result's
// score, matching engine_recall.py's "score += mean(scorer.score(...))".
func applyScorers(results []types.MemoryResult, query string, scorers []Scorer, now time.Time) {
	if len(scorers) == 0 {
		return
	}
	for i := range results {
		total := 0.0
		for _, scorer := range scorers {
			total += scorer.Score(query, results[i].Record, now)
		}
		results[i].Score += total / float64(len(scorers))
	}
}
