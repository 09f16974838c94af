package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vmoranv/cerise/pkg/types"
)

// Retriever fetches candidate memory results for a query. Grounded on
// apps/core/ai/memory/retrieval.py's Retriever protocol.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query, sessionID string, topK int) ([]types.MemoryResult, error)
}

// BM25Retriever prefers the store's FTS5 index, falling back to plain
// keyword-overlap scoring when the store reports no FTS support.
type BM25Retriever struct {
	store *Store
}

func NewBM25Retriever(store *Store) *BM25Retriever { return &BM25Retriever{store: store} }

func (r *BM25Retriever) Name() string { return "bm25" }

func (r *BM25Retriever) Retrieve(ctx context.Context, query, sessionID string, topK int) ([]types.MemoryResult, error) {
	if r.store.SupportsFTS() {
		scored, err := r.store.SearchFTS(ctx, query, sessionID, topK)
		if err != nil {
			return nil, err
		}
		out := make([]types.MemoryResult, 0, len(scored))
		for _, s := range scored {
			record, err := r.store.Get(ctx, s.ID)
			if err != nil || record == nil {
				continue
			}
			out = append(out, types.MemoryResult{Record: *record, Score: s.Score})
		}
		return out, nil
	}

	records, err := r.store.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	queryTokens := toSet(tokenize(query))
	if len(queryTokens) == 0 {
		return nil, nil
	}
	var out []types.MemoryResult
	for _, record := range records {
		overlap := len(intersect(queryTokens, toSet(tokenize(record.Content))))
		score := float64(overlap) / float64(max(len(queryTokens), 1))
		if score > 0 {
			out = append(out, types.MemoryResult{Record: record, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// VectorRetriever embeds the query and searches the vector index.
type VectorRetriever struct {
	store    *Store
	index    *VectorIndex
	embedder Embedder
	modelID  string
}

func NewVectorRetriever(store *Store, index *VectorIndex, embedder Embedder, modelID string) *VectorRetriever {
	return &VectorRetriever{store: store, index: index, embedder: embedder, modelID: modelID}
}

func (r *VectorRetriever) Name() string { return "vector" }

func (r *VectorRetriever) Retrieve(ctx context.Context, query, sessionID string, topK int) ([]types.MemoryResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	vectors, err := r.embedder.Embed(ctx, []string{query}, r.modelID)
	if err != nil || len(vectors) == 0 {
		return nil, err
	}
	scored, err := r.index.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, err
	}
	var out []types.MemoryResult
	for _, s := range scored {
		record, err := r.store.Get(ctx, s.ID)
		if err != nil || record == nil {
			continue
		}
		if sessionID != "" && record.SessionID != sessionID {
			continue
		}
		out = append(out, types.MemoryResult{Record: *record, Score: s.Score})
	}
	return out, nil
}

// KGRetriever searches the knowledge graph for triples matching query,
// surfacing each as a synthetic "Fact: S P O" system record.
type KGRetriever struct {
	kg *KGStore
}

func NewKGRetriever(kg *KGStore) *KGRetriever { return &KGRetriever{kg: kg} }

func (r *KGRetriever) Name() string { return "kg" }

func (r *KGRetriever) Retrieve(ctx context.Context, query, sessionID string, topK int) ([]types.MemoryResult, error) {
	triples, err := r.kg.Search(ctx, query, sessionID, topK)
	if err != nil {
		return nil, err
	}
	out := make([]types.MemoryResult, 0, len(triples))
	for _, t := range triples {
		out = append(out, types.MemoryResult{
			Record: syntheticFactRecord(t),
			Score:  t.Score,
		})
	}
	return out, nil
}

func syntheticFactRecord(t types.KGTriple) types.MemoryRecord {
	extra := map[string]any{"type": "kg", "subject": t.Subject, "predicate": t.Predicate, "object": t.Object}
	if t.MemoryID != nil {
		extra["memory_id"] = *t.MemoryID
	}
	return types.MemoryRecord{
		ID:        t.TripleID,
		SessionID: t.SessionID,
		Role:      "system",
		Content:   fmt.Sprintf("Fact: %s %s %s", t.Subject, t.Predicate, t.Object),
		CreatedAt: t.CreatedAt,
		Metadata:  types.MemoryMetadata{Extra: extra},
	}
}

// rrfFuse combines several ranked result lists with Reciprocal Rank Fusion:
// score(record) = sum over lists of 1/(k+rank), 1-indexed rank. Ties retain
// first-seen order (Go's sort.SliceStable preserves input order, and
// results are appended list-by-list, so earlier lists' ties win).
func rrfFuse(rankedLists [][]types.MemoryResult, k int) []types.MemoryResult {
	scores := make(map[string]float64)
	records := make(map[string]types.MemoryRecord)
	var order []string

	for _, results := range rankedLists {
		for i, item := range results {
			rank := i + 1
			key := item.Record.ID
			if _, seen := scores[key]; !seen {
				order = append(order, key)
			}
			scores[key] += 1.0 / float64(k+rank)
			records[key] = item.Record
		}
	}

	fused := make([]types.MemoryResult, 0, len(order))
	for _, key := range order {
		fused = append(fused, types.MemoryResult{Record: records[key], Score: scores[key]})
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
