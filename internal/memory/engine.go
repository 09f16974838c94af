package memory

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/vmoranv/cerise/internal/contracts"
	"github.com/vmoranv/cerise/internal/event"
	"github.com/vmoranv/cerise/pkg/types"
)

const engineSource = "memory_engine"

// Engine is the event-driven memory engine: hybrid-retrieval recall over an
// episodic store, scoring and reranking, associative knowledge-graph
// expansion, and threshold-triggered compression. Grounded on
// apps/core/ai/memory/engine.py / engine_ingest.py / engine_recall.py.
type Engine struct {
	Config Config

	store   *Store
	kg      *KGStore
	vector  *VectorIndex
	embed   Embedder
	rerank  Reranker
	scorers []Scorer
	bus     *event.Bus
	compr   *Compressor

	retrievers []Retriever

	rand *rand.Rand
}

// Reranker scores candidate documents against a query, best first.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, modelID string, topK int) ([]RerankResult, error)
}

// RerankResult pairs a candidate's original index with its relevance score.
type RerankResult struct {
	Index int
	Score float64
}

// EngineOption configures optional Engine dependencies.
type EngineOption func(*Engine)

func WithVectorIndex(index *VectorIndex, embedder Embedder) EngineOption {
	return func(e *Engine) { e.vector, e.embed = index, embedder }
}

func WithKGStore(kg *KGStore) EngineOption {
	return func(e *Engine) { e.kg = kg }
}

func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) { e.rerank = r }
}

func WithEventBus(bus *event.Bus) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

func WithCompressor(c *Compressor) EngineOption {
	return func(e *Engine) { e.compr = c }
}

// NewEngine builds the engine and wires its retriever set according to cfg.
func NewEngine(cfg Config, store *Store, opts ...EngineOption) *Engine {
	e := &Engine{
		Config:  cfg,
		store:   store,
		scorers: DefaultScorers(cfg.Scoring),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.Sparse.Enabled {
		e.retrievers = append(e.retrievers, NewBM25Retriever(store))
	}
	if cfg.Vector.Enabled && e.vector != nil && e.embed != nil {
		e.retrievers = append(e.retrievers, NewVectorRetriever(store, e.vector, e.embed, cfg.Vector.EmbeddingModel))
	}
	if cfg.KG.Enabled && e.kg != nil {
		e.retrievers = append(e.retrievers, NewKGRetriever(e.kg))
	}
	return e
}

// IngestMessage builds a MemoryRecord from the given fields and persists it
// through AddRecord, returning the stored record.
func (e *Engine) IngestMessage(ctx context.Context, sessionID, role, content string, metadata types.MemoryMetadata) (*types.MemoryRecord, error) {
	record := types.MemoryRecord{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().Unix(),
	}
	if err := e.AddRecord(ctx, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// AddRecord persists record, indexes it for vector and KG retrieval,
// enforces the session overflow cap, triggers compression if warranted, and
// emits a memory.recorded event.
func (e *Engine) AddRecord(ctx context.Context, record *types.MemoryRecord) error {
	if record.ID == "" {
		record.ID = fmt.Sprintf("mem_%d_%d", record.CreatedAt, e.rand.Int63())
	}
	if e.Config.Store.TTLSeconds > 0 {
		expires := record.CreatedAt + e.Config.Store.TTLSeconds
		record.ExpiresAt = &expires
	}
	if err := e.store.Add(ctx, *record); err != nil {
		return err
	}

	if e.vector != nil && e.embed != nil {
		if vectors, err := e.embed.Embed(ctx, []string{record.Content}, ""); err == nil && len(vectors) > 0 {
			_ = e.vector.Upsert(ctx, record.ID, vectors[0])
		}
	}

	if e.kg != nil {
		memID := record.ID
		for _, t := range extractTriples(record.Content) {
			triple := types.KGTriple{
				TripleID:  fmt.Sprintf("kg_%s_%d", record.ID, e.rand.Int63()),
				SessionID: record.SessionID,
				Subject:   t.Subject,
				Predicate: t.Predicate,
				Object:    t.Object,
				MemoryID:  &memID,
				CreatedAt: record.CreatedAt,
			}
			_ = e.kg.Add(ctx, triple)
		}
	}

	if err := e.enforceSessionLimits(ctx, record.SessionID); err != nil {
		return err
	}
	if err := e.maybeCompress(ctx, record.SessionID); err != nil {
		return err
	}

	if e.bus != nil {
		e.bus.PublishSync(contracts.NewMemoryRecorded(engineSource, record.ID, record.SessionID))
	}
	return nil
}

func (e *Engine) enforceSessionLimits(ctx context.Context, sessionID string) error {
	limit := e.Config.Store.MaxRecordsPerSession
	if limit <= 0 {
		return nil
	}
	count, err := e.store.Count(ctx, sessionID)
	if err != nil {
		return err
	}
	if count <= limit {
		return nil
	}
	records, err := e.store.List(ctx, sessionID)
	if err != nil {
		return err
	}
	overflow := len(records) - limit
	if overflow <= 0 {
		return nil
	}
	ids := make([]string, overflow)
	for i := 0; i < overflow; i++ {
		ids[i] = records[i].ID
	}
	return e.store.Delete(ctx, ids)
}

func (e *Engine) maybeCompress(ctx context.Context, sessionID string) error {
	if e.compr == nil {
		return nil
	}
	count, err := e.store.Count(ctx, sessionID)
	if err != nil {
		return err
	}
	if !e.compr.ShouldCompress(count) {
		return nil
	}
	records, err := e.store.List(ctx, sessionID)
	if err != nil {
		return err
	}
	toCompress := e.compr.SelectRecords(records)
	if len(toCompress) == 0 {
		return nil
	}
	summary := e.compr.Compress(ctx, toCompress, time.Now().Unix())
	if e.Config.Store.TTLSeconds > 0 {
		expires := summary.CreatedAt + e.Config.Store.TTLSeconds
		summary.ExpiresAt = &expires
	}
	ids := make([]string, len(toCompress))
	for i, r := range toCompress {
		ids[i] = r.ID
	}
	if err := e.store.Delete(ctx, ids); err != nil {
		return err
	}
	summary.ID = fmt.Sprintf("mem_summary_%d_%d", summary.CreatedAt, e.rand.Int63())
	return e.store.Add(ctx, summary)
}

// Recall runs the full hybrid-retrieval pipeline and returns up to limit
// results for query, restricted to sessionID when set.
func (e *Engine) Recall(ctx context.Context, query string, limit int, sessionID string) ([]types.MemoryResult, error) {
	if !e.Config.Recall.Enabled {
		return nil, nil
	}

	var rankedLists [][]types.MemoryResult
	for _, r := range e.retrievers {
		results, err := r.Retrieve(ctx, query, sessionID, e.retrieverTopK(r))
		if err != nil {
			continue
		}
		rankedLists = append(rankedLists, results)
	}
	fused := rrfFuse(rankedLists, e.Config.Recall.RRFK)

	if e.Config.Association.Enabled && e.kg != nil {
		assoc := e.associativeRecall(ctx, query, fused, sessionID)
		if len(assoc) > 0 {
			fused = rrfFuse([][]types.MemoryResult{fused, assoc}, e.Config.Recall.RRFK)
		}
	}

	minScore := e.Config.Recall.MinScore
	if e.Config.Association.Enabled && e.Config.Association.MinScore < minScore {
		minScore = e.Config.Association.MinScore
	}
	filtered := filterResults(fused, minScore)
	if e.Config.Scoring.EmotionFilterEnabled {
		filtered = filterByEmotion(filtered, e.Config.Scoring.EmotionMinIntensity)
	}

	applyScorers(filtered, query, e.scorers, time.Now())

	reranked := e.rerankResults(ctx, query, filtered)
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })

	reranked = e.maybeRandomRecall(ctx, query, reranked, sessionID)

	filled, err := e.fillWithRecent(ctx, reranked, limit, sessionID)
	if err != nil {
		return nil, err
	}
	if len(filled) > limit {
		filled = filled[:limit]
	}

	if e.Config.Recall.TouchOnRecall {
		e.touchResults(ctx, filled)
	}
	return filled, nil
}

func (e *Engine) retrieverTopK(r Retriever) int {
	switch r.Name() {
	case "vector":
		return e.Config.Vector.TopK
	case "bm25":
		return e.Config.Sparse.TopK
	case "kg":
		return e.Config.KG.TopK
	default:
		return e.Config.Recall.TopK
	}
}

func filterResults(results []types.MemoryResult, minScore float64) []types.MemoryResult {
	var out []types.MemoryResult
	seenIDs := make(map[string]bool)
	seenContent := make(map[string]bool)
	for _, item := range results {
		if item.Score < minScore {
			continue
		}
		if seenIDs[item.Record.ID] {
			continue
		}
		seenIDs[item.Record.ID] = true
		key := strings.ToLower(strings.TrimSpace(item.Record.Content))
		if seenContent[key] {
			continue
		}
		seenContent[key] = true
		out = append(out, item)
	}
	return out
}

func filterByEmotion(results []types.MemoryResult, minIntensity float64) []types.MemoryResult {
	if minIntensity <= 0 {
		return results
	}
	var out []types.MemoryResult
	for _, item := range results {
		if emotionPasses(item.Record, minIntensity) {
			out = append(out, item)
		}
	}
	return out
}

func emotionPasses(record types.MemoryRecord, minIntensity float64) bool {
	if minIntensity <= 0 || record.Metadata.Emotion == nil {
		return true
	}
	return record.Metadata.Emotion.Intensity >= minIntensity
}

func (e *Engine) rerankResults(ctx context.Context, query string, results []types.MemoryResult) []types.MemoryResult {
	if !e.Config.Rerank.Enabled || len(results) == 0 || e.Config.Rerank.TopK <= 0 {
		return results
	}
	topK := e.Config.Rerank.TopK
	if topK > len(results) {
		topK = len(results)
	}
	candidates := results[:topK]
	tail := results[topK:]

	docs := make([]string, len(candidates))
	for i, item := range candidates {
		docs[i] = item.Record.Content
	}

	var scores []float64
	if e.rerank != nil {
		if rr, err := e.rerank.Rerank(ctx, query, docs, e.Config.Rerank.Model, len(docs)); err == nil && len(rr) > 0 {
			scores = make([]float64, len(docs))
			for _, r := range rr {
				if r.Index >= 0 && r.Index < len(scores) {
					scores[r.Index] = r.Score
				}
			}
		}
	}
	if scores == nil && e.embed != nil {
		scores = e.rerankWithEmbeddings(ctx, query, candidates)
	}
	if scores == nil {
		return results
	}

	weight := e.Config.Rerank.Weight
	merged := make([]types.MemoryResult, len(candidates))
	for i, item := range candidates {
		blended := (1-weight)*item.Score + weight*scores[i]
		merged[i] = types.MemoryResult{Record: item.Record, Score: blended}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return append(merged, tail...)
}

func (e *Engine) rerankWithEmbeddings(ctx context.Context, query string, candidates []types.MemoryResult) []float64 {
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, item := range candidates {
		texts = append(texts, item.Record.Content)
	}
	vectors, err := e.embed.Embed(ctx, texts, "")
	if err != nil || len(vectors) != len(texts) {
		return nil
	}
	queryVec := vectors[0]
	scores := make([]float64, len(candidates))
	for i, docVec := range vectors[1:] {
		scores[i] = cosineSimilarity(queryVec, docVec)
	}
	return scores
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (e *Engine) maybeRandomRecall(ctx context.Context, query string, results []types.MemoryResult, sessionID string) []types.MemoryResult {
	cfg := e.Config.Recall
	if !cfg.RandomEnabled || cfg.RandomK <= 0 {
		return results
	}
	lowered := strings.ToLower(query)
	triggered := false
	for _, kw := range cfg.TriggerKeywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			triggered = true
			break
		}
	}
	if !triggered && e.rand.Float64() > cfg.RandomProbability {
		return results
	}
	random := e.randomRecall(ctx, sessionID, cfg.RandomK)
	if len(random) == 0 {
		return results
	}
	fused := rrfFuse([][]types.MemoryResult{results, random}, cfg.RRFK)
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

func (e *Engine) randomRecall(ctx context.Context, sessionID string, k int) []types.MemoryResult {
	records, err := e.store.List(ctx, sessionID)
	if err != nil || len(records) == 0 {
		return nil
	}
	sampleSize := k
	if sampleSize > len(records) {
		sampleSize = len(records)
	}
	if sampleSize <= 0 {
		return nil
	}
	perm := e.rand.Perm(len(records))[:sampleSize]
	out := make([]types.MemoryResult, sampleSize)
	for i, idx := range perm {
		out[i] = types.MemoryResult{Record: records[idx], Score: 0.01}
	}
	return out
}

func (e *Engine) fillWithRecent(ctx context.Context, results []types.MemoryResult, limit int, sessionID string) ([]types.MemoryResult, error) {
	if len(results) >= limit {
		return results, nil
	}
	records, err := e.store.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt > records[j].CreatedAt })

	seen := make(map[string]bool, len(results))
	for _, item := range results {
		seen[item.Record.ID] = true
	}
	emotionFilter := e.Config.Scoring.EmotionFilterEnabled

	for _, record := range records {
		if len(results) >= limit {
			break
		}
		if seen[record.ID] {
			continue
		}
		if emotionFilter && !emotionPasses(record, e.Config.Scoring.EmotionMinIntensity) {
			continue
		}
		results = append(results, types.MemoryResult{Record: record, Score: 0.01})
		seen[record.ID] = true
	}
	return results, nil
}

func (e *Engine) touchResults(ctx context.Context, results []types.MemoryResult) {
	now := time.Now().Unix()
	for _, item := range results {
		_ = e.store.Touch(ctx, item.Record.ID, now)
	}
}

const maxAssociationEntities = 12

func (e *Engine) associativeRecall(ctx context.Context, query string, base []types.MemoryResult, sessionID string) []types.MemoryResult {
	cfg := e.Config.Association
	if cfg.MaxHops <= 0 {
		return nil
	}
	entities := gatherEntities(query, base, maxAssociationEntities)
	if len(entities) == 0 {
		return nil
	}

	var all []types.MemoryResult
	seen := make(map[string]bool, len(entities))
	for _, ent := range entities {
		seen[ent] = true
	}
	hopEntities := entities

	for hop := 0; hop < cfg.MaxHops; hop++ {
		var triples []types.KGTriple
		for _, ent := range hopEntities {
			found, err := e.kg.Neighbors(ctx, ent, sessionID)
			if err == nil {
				triples = append(triples, found...)
			}
		}
		if len(triples) == 0 {
			break
		}

		var nextEntities []string
		for _, t := range triples {
			score := 0.3 + 0.2
			if t.MemoryID != nil {
				if record, err := e.store.Get(ctx, *t.MemoryID); err == nil && record != nil {
					all = append(all, types.MemoryResult{Record: *record, Score: score})
				}
			} else {
				all = append(all, types.MemoryResult{Record: syntheticFactRecord(t), Score: score})
			}
			if t.Subject != "" && !seen[t.Subject] {
				seen[t.Subject] = true
				nextEntities = append(nextEntities, t.Subject)
			}
			if t.Object != "" && !seen[t.Object] {
				seen[t.Object] = true
				nextEntities = append(nextEntities, t.Object)
			}
		}
		if len(nextEntities) == 0 {
			break
		}
		if len(nextEntities) > maxAssociationEntities {
			nextEntities = nextEntities[:maxAssociationEntities]
		}
		hopEntities = nextEntities
	}
	return all
}

func gatherEntities(query string, base []types.MemoryResult, maxEntities int) []string {
	var entities []string
	entities = append(entities, extractEntities(query, maxEntities)...)
	limit := len(base)
	if limit > 5 {
		limit = 5
	}
	for _, item := range base[:limit] {
		if len(entities) >= maxEntities {
			break
		}
		entities = append(entities, extractEntities(item.Record.Content, maxEntities-len(entities))...)
	}

	seen := make(map[string]bool)
	var deduped []string
	for _, ent := range entities {
		if seen[ent] {
			continue
		}
		seen[ent] = true
		deduped = append(deduped, ent)
		if len(deduped) >= maxEntities {
			break
		}
	}
	return deduped
}

// FormatContext renders results for prompt injection, one numbered line per
// result, content truncated to 200 characters.
func (e *Engine) FormatContext(results []types.MemoryResult) string {
	if len(results) == 0 {
		return ""
	}
	lines := []string{"[Memory Recall]"}
	format := e.Config.Time.TimestampFormat
	if format == "" {
		format = "2006-01-02 15:04"
	}
	for i, item := range results {
		content := strings.Join(strings.Fields(item.Record.Content), " ")
		content = truncateEllipsis(content, 200)
		timestamp := time.Unix(item.Record.CreatedAt, 0).UTC().Format(goTimeLayout(format))
		lines = append(lines, fmt.Sprintf("%d. (%s @ %s) %s", i+1, item.Record.Role, timestamp, content))
	}
	return strings.Join(lines, "\n")
}

// goTimeLayout maps the handful of strftime-style directives the config
// surface accepts to Go's reference-time layout, so operators can keep
// writing "%Y-%m-%d %H:%M" in configuration.
func goTimeLayout(format string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006", "%m", "01", "%d", "02",
		"%H", "15", "%M", "04", "%S", "05",
	)
	if strings.Contains(format, "%") {
		return replacer.Replace(format)
	}
	return format
}
