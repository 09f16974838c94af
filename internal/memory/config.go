// Package memory implements the Memory Engine: an episodic record store
// with multi-retriever recall (sparse/vector/knowledge-graph), reciprocal
// rank fusion, scoring plugins, reranking, associative KG recall, and
// compression into summary records.
//
// Grounded on apps/core/ai/memory/{engine,engine_recall,engine_ingest,
// retrieval,scorers,compression,config}.py of the original implementation.
package memory

import "time"

// Config mirrors apps/core/ai/memory/config_models.py's MemoryConfig.
type Config struct {
	Store       StoreConfig
	Sparse      RetrieverConfig
	Vector      RetrieverConfig
	KG          RetrieverConfig
	Recall      RecallConfig
	Association AssociationConfig
	Scoring     ScoringConfig
	Rerank      RerankConfig
	Compression CompressionConfig
	Time        TimeConfig
}

// DefaultConfig returns the engine's out-of-the-box tuning, matching the
// original's defaults.
func DefaultConfig() Config {
	return Config{
		Store:  StoreConfig{MaxRecordsPerSession: 500, TTLSeconds: 0},
		Sparse: RetrieverConfig{Enabled: true, TopK: 10},
		Vector: RetrieverConfig{Enabled: false, TopK: 10},
		KG:     RetrieverConfig{Enabled: false, TopK: 10},
		Recall: RecallConfig{
			Enabled: true, TopK: 5, RRFK: 60, MinScore: 0,
			RandomEnabled: false, RandomK: 0, RandomProbability: 0,
			TouchOnRecall: true,
		},
		Association: AssociationConfig{Enabled: false, MinScore: 0, MaxHops: 1},
		Scoring: ScoringConfig{
			KeywordWeight:       1.0,
			RecencyHalfLife:     30 * time.Minute,
			RecencyWeight:       1.0,
			ImportanceWeight:    0.15,
			EmotionWeight:       0.1,
			ReinforcementWeight: 0.05,
			ReinforcementCap:    20,
			EmotionFilterEnabled: false,
			EmotionMinIntensity:  0,
		},
		Rerank:      RerankConfig{Enabled: false, TopK: 20, Weight: 0.5},
		Compression: CompressionConfig{Threshold: 0, Window: 20, MaxChars: 800},
		Time:        TimeConfig{TimestampFormat: "2006-01-02 15:04"},
	}
}

type StoreConfig struct {
	MaxRecordsPerSession int
	TTLSeconds           int64
}

type RetrieverConfig struct {
	Enabled        bool
	TopK           int
	EmbeddingModel string
}

type RecallConfig struct {
	Enabled           bool
	TopK              int
	RRFK              int
	MinScore          float64
	RandomEnabled     bool
	RandomK           int
	RandomProbability float64
	TriggerKeywords   []string
	TouchOnRecall     bool
}

type AssociationConfig struct {
	Enabled  bool
	MinScore float64
	MaxHops  int
}

type ScoringConfig struct {
	KeywordWeight        float64
	RecencyHalfLife      time.Duration
	RecencyWeight        float64
	ImportanceWeight     float64
	EmotionWeight        float64
	ReinforcementWeight  float64
	ReinforcementCap     int
	EmotionFilterEnabled bool
	EmotionMinIntensity  float64
}

type RerankConfig struct {
	Enabled    bool
	TopK       int
	Weight     float64
	ProviderID string
	Model      string
}

type CompressionConfig struct {
	Threshold  int
	Window     int
	MaxChars   int
	ProviderID string
	Model      string
}

type TimeConfig struct {
	TimestampFormat string
}
