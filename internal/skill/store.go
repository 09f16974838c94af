// Package skill implements the Skill Service (§4.11): a keyed library of
// reusable code snippets searchable by relevance, formatted into the
// dialogue's prompt injection block, plus a per-session tool-run audit
// ring buffer.
//
// Grounded on internal/memory's Embedder interface and cosine-similarity
// rerank (engine.go) for the embedding search path, and on opencode's
// internal/agent.Registry map+mutex shape for the keyed store itself.
package skill

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/vmoranv/cerise/pkg/types"
)

// Embedder computes embedding vectors for texts, matching
// internal/memory.Embedder's shape so a provider's Embed method can
// satisfy both without an adapter.
type Embedder interface {
	Embed(ctx context.Context, texts []string, modelID string) ([][]float64, error)
}

// Store is the process-wide keyed skill library.
type Store struct {
	mu     sync.RWMutex
	skills map[string]types.Skill
	embed  Embedder
}

func NewStore(embed Embedder) *Store {
	return &Store{skills: make(map[string]types.Skill), embed: embed}
}

// Upsert inserts or replaces s under s.ID, stamping CreatedAt on first
// insert and UpdatedAt on every write.
func (st *Store) Upsert(s types.Skill) types.Skill {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := time.Now().Unix()
	if existing, ok := st.skills[s.ID]; ok {
		s.CreatedAt = existing.CreatedAt
	} else {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	st.skills[s.ID] = s
	return s
}

// Get returns the skill keyed by id, if any.
func (st *Store) Get(id string) (types.Skill, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.skills[id]
	return s, ok
}

// List returns every skill, sorted by name for stable output.
func (st *Store) List() []types.Skill {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]types.Skill, 0, len(st.skills))
	for _, s := range st.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes the skill keyed by id. Idempotent.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.skills, id)
}

// Search returns the top-k skills most relevant to query: embedding
// cosine similarity when an Embedder is configured, otherwise Jaccard
// over the token set of name ∪ description ∪ code, raised to a
// Levenshtein-derived near-match score on the skill name when that is
// higher, for typo-tolerant lookups.
func (st *Store) Search(ctx context.Context, query string, topK int) ([]types.Skill, error) {
	if topK <= 0 {
		topK = 3
	}
	skills := st.List()
	if len(skills) == 0 {
		return nil, nil
	}

	var scores []float64
	if st.embed != nil {
		if s, err := st.embeddingScores(ctx, query, skills); err == nil {
			scores = s
		}
	}
	if scores == nil {
		scores = st.lexicalScores(query, skills)
	}

	type scored struct {
		skill types.Skill
		score float64
	}
	ranked := make([]scored, len(skills))
	for i, s := range skills {
		ranked[i] = scored{skill: s, score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topK > len(ranked) {
		topK = len(ranked)
	}
	out := make([]types.Skill, topK)
	for i := 0; i < topK; i++ {
		out[i] = ranked[i].skill
	}
	return out, nil
}

func (st *Store) embeddingScores(ctx context.Context, query string, skills []types.Skill) ([]float64, error) {
	texts := make([]string, 0, len(skills)+1)
	texts = append(texts, query)
	for _, s := range skills {
		texts = append(texts, s.Name+" "+s.Description+" "+s.Code)
	}
	vectors, err := st.embed.Embed(ctx, texts, "")
	if err != nil || len(vectors) != len(texts) {
		return nil, err
	}
	queryVec := vectors[0]
	scores := make([]float64, len(skills))
	for i, docVec := range vectors[1:] {
		scores[i] = cosineSimilarity(queryVec, docVec)
	}
	return scores, nil
}

func (st *Store) lexicalScores(query string, skills []types.Skill) []float64 {
	queryTokens := tokenSet(query)
	scores := make([]float64, len(skills))
	for i, s := range skills {
		docTokens := tokenSet(s.Name + " " + s.Description + " " + s.Code)
		jaccard := jaccardSimilarity(queryTokens, docTokens)

		nameDist := levenshtein.ComputeDistance(strings.ToLower(query), strings.ToLower(s.Name))
		maxLen := len(query)
		if len(s.Name) > maxLen {
			maxLen = len(s.Name)
		}
		nameScore := 0.0
		if maxLen > 0 {
			nameScore = 1 - float64(nameDist)/float64(maxLen)
		}

		scores[i] = jaccard
		if nameScore > scores[i] {
			scores[i] = nameScore
		}
	}
	return scores
}

func tokenSet(s string) map[string]struct{} {
	tokens := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
