package dialogue

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vmoranv/cerise/internal/memorypipeline"
	"github.com/vmoranv/cerise/pkg/types"
)

// layer names, in the order the prompt sections appear.
const (
	layerCore     = "core"
	layerFacts    = "facts"
	layerHabits   = "habits"
	layerEpisodic = "episodic"
)

// EpisodicRecaller is the subset of memory.Engine the context builder
// needs: recall scored results for a query and format them as prompt text.
type EpisodicRecaller interface {
	Recall(ctx context.Context, query string, limit int, sessionID string) ([]types.MemoryResult, error)
	FormatContext(results []types.MemoryResult) string
}

// LayerSource is the subset of memorypipeline.LayerStores the context
// builder needs: the persisted core-profile/fact/habit records for a
// session.
type LayerSource interface {
	CoreProfiles(sessionID string, limit int) []memorypipeline.CoreProfileRecord
	Facts(sessionID string, limit int) []memorypipeline.FactRecord
	Habits(sessionID string, limit int) []memorypipeline.HabitRecord
}

// MemoryContextConfig controls how the four layers share the context
// budget. Weights default to DefaultMemoryContextConfig's weights when
// unset; PerLayerLimit optionally caps an individual layer below its
// computed quota.
type MemoryContextConfig struct {
	MaxItems      int
	Weights       map[string]float64
	PerLayerLimit map[string]int
}

// DefaultMemoryContextConfig weights the layers 1:3:1:3: Core Profile and
// Habits are lighter-weight summaries, Facts and Episodic Recall carry more
// of the budget.
func DefaultMemoryContextConfig() MemoryContextConfig {
	return MemoryContextConfig{
		MaxItems: 12,
		Weights: map[string]float64{
			layerCore:     1,
			layerFacts:    3,
			layerHabits:   1,
			layerEpisodic: 3,
		},
	}
}

// MemoryContextBuilder composes the four-section memory block described in
// §4.8: [Core Profile], [Facts], [Habits], [Episodic Recall], each trimmed
// to its quota of MaxItems.
type MemoryContextBuilder struct {
	Config   MemoryContextConfig
	Episodic EpisodicRecaller
	Layers   LayerSource
}

func NewMemoryContextBuilder(cfg MemoryContextConfig, episodic EpisodicRecaller, layers LayerSource) *MemoryContextBuilder {
	return &MemoryContextBuilder{Config: cfg, Episodic: episodic, Layers: layers}
}

// quotas implements §4.8's allocation formula: quota[layer] = floor(max_items
// * w[layer] / sum(w)), with the remainder distributed one-at-a-time to the
// highest-weighted layers, then capped by any explicit PerLayerLimit.
func (b *MemoryContextBuilder) quotas() map[string]int {
	layers := []string{layerCore, layerFacts, layerHabits, layerEpisodic}
	weights := b.Config.Weights
	if weights == nil {
		weights = DefaultMemoryContextConfig().Weights
	}

	var total float64
	for _, l := range layers {
		total += weights[l]
	}

	quota := make(map[string]int, len(layers))
	if total <= 0 {
		return quota
	}

	allocated := 0
	for _, l := range layers {
		q := int(float64(b.Config.MaxItems) * weights[l] / total)
		quota[l] = q
		allocated += q
	}

	remainder := b.Config.MaxItems - allocated
	if remainder > 0 {
		ordered := append([]string(nil), layers...)
		sort.SliceStable(ordered, func(i, j int) bool { return weights[ordered[i]] > weights[ordered[j]] })
		for i := 0; i < remainder; i++ {
			quota[ordered[i%len(ordered)]]++
		}
	}

	for layer, limit := range b.Config.PerLayerLimit {
		if limit >= 0 && quota[layer] > limit {
			quota[layer] = limit
		}
	}
	return quota
}

// Build assembles the full memory context block for sessionID, given the
// user's latest query text (used for episodic recall and, in future, for
// relevance-scoped fact/habit lookups).
func (b *MemoryContextBuilder) Build(ctx context.Context, sessionID, query string) string {
	quota := b.quotas()
	var sections []string

	if b.Layers != nil {
		if s := formatCoreSection(b.Layers.CoreProfiles(sessionID, quota[layerCore])); s != "" {
			sections = append(sections, s)
		}
		if s := formatFactsSection(b.Layers.Facts(sessionID, quota[layerFacts])); s != "" {
			sections = append(sections, s)
		}
		if s := formatHabitsSection(b.Layers.Habits(sessionID, quota[layerHabits])); s != "" {
			sections = append(sections, s)
		}
	}

	if b.Episodic != nil && quota[layerEpisodic] > 0 {
		results, err := b.Episodic.Recall(ctx, query, quota[layerEpisodic], sessionID)
		if err == nil && len(results) > 0 {
			// FormatContext's first line is its own header; the section is
			// relabelled so all four sections share one naming scheme.
			formatted := b.Episodic.FormatContext(results)
			if i := strings.IndexByte(formatted, '\n'); i >= 0 {
				sections = append(sections, "[Episodic Recall]\n"+formatted[i+1:])
			}
		}
	}

	return strings.Join(sections, "\n\n")
}

func formatCoreSection(records []memorypipeline.CoreProfileRecord) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Core Profile]\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s\n", r.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFactsSection(records []memorypipeline.FactRecord) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Facts]\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s %s %s\n", r.Subject, r.Predicate, r.Object)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHabitsSection(records []memorypipeline.HabitRecord) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Habits]\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s: %s\n", r.TaskType, r.Instruction)
	}
	return strings.TrimRight(b.String(), "\n")
}
