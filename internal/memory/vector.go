package memory

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/vmoranv/cerise/internal/cerr"
)

const vectorCollection = "memory"

// Embedder produces an embedding vector per input text, satisfied by
// provider.Provider.Embed.
type Embedder interface {
	Embed(ctx context.Context, texts []string, modelID string) ([][]float64, error)
}

// VectorIndex wraps an embedded chromem-go collection for nearest-neighbor
// lookup over memory record IDs. Grounded on kadirpekel-hector's
// pkg/vector.ChromemProvider, adapted to index memory record IDs instead of
// RAG document chunks and to accept pre-computed embedding vectors from an
// arbitrary Embedder rather than a fixed chromem embedding function.
type VectorIndex struct {
	mu   sync.Mutex
	db   *chromem.DB
	col  *chromem.Collection
	path string
}

// NewVectorIndex opens (or creates) a chromem-go database. If persistPath is
// empty the index is in-memory only.
func NewVectorIndex(persistPath string) (*VectorIndex, error) {
	var db *chromem.DB
	var err error
	if persistPath != "" {
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	identity := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("vector index expects pre-computed embeddings, got bare text %q", text)
	}
	col, err := db.GetOrCreateCollection(vectorCollection, nil, identity)
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.vector.open", err)
	}

	return &VectorIndex{db: db, col: col, path: persistPath}, nil
}

// Upsert indexes recordID under vector.
func (v *VectorIndex) Upsert(ctx context.Context, recordID string, vector []float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	doc := chromem.Document{ID: recordID, Embedding: toFloat32(vector)}
	if err := v.col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return cerr.New(cerr.ExternalError, "memory.vector.upsert", err)
	}
	return v.persist()
}

// Search returns up to topK (recordID, similarity) pairs closest to vector.
func (v *VectorIndex) Search(ctx context.Context, vector []float64, topK int) ([]ScoredID, error) {
	if topK <= 0 {
		return nil, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	results, err := v.col.QueryEmbedding(ctx, toFloat32(vector), topK, nil, nil)
	if err != nil {
		return nil, cerr.New(cerr.ExternalError, "memory.vector.search", err)
	}
	out := make([]ScoredID, 0, len(results))
	for _, r := range results {
		out = append(out, ScoredID{ID: r.ID, Score: float64(r.Similarity)})
	}
	return out, nil
}

// Delete removes recordID from the index.
func (v *VectorIndex) Delete(ctx context.Context, recordID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.col.Delete(ctx, nil, nil, recordID); err != nil {
		return cerr.New(cerr.ExternalError, "memory.vector.delete", err)
	}
	return v.persist()
}

func (v *VectorIndex) persist() error {
	if v.path == "" {
		return nil
	}
	return v.db.Export(v.path, false, "") //nolint:staticcheck
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
