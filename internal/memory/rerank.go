package memory

import (
	"context"

	"github.com/vmoranv/cerise/internal/provider"
)

// ProviderReranker adapts a provider.Provider's Rerank method to the
// Reranker interface the recall pipeline consumes.
type ProviderReranker struct {
	Provider provider.Provider
}

func (p ProviderReranker) Rerank(ctx context.Context, query string, documents []string, modelID string, topK int) ([]RerankResult, error) {
	if p.Provider == nil || !p.Provider.GetCapabilities().Rerank {
		return nil, nil
	}
	ranked, err := p.Provider.Rerank(ctx, query, documents, modelID, topK)
	if err != nil {
		return nil, err
	}
	out := make([]RerankResult, len(ranked))
	for i, r := range ranked {
		out[i] = RerankResult{Index: r.Index, Score: r.Score}
	}
	return out, nil
}
