package memorypipeline

import (
	"context"

	"github.com/vmoranv/cerise/pkg/types"
)

// CompositeExtractor chains several extractors, concatenating their
// results. Grounded on extractor_composite.py's CompositeMemoryExtractor.
type CompositeExtractor struct {
	extractors []Extractor
}

func NewCompositeExtractor(extractors ...Extractor) *CompositeExtractor {
	var filtered []Extractor
	for _, e := range extractors {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return &CompositeExtractor{extractors: filtered}
}

func (c *CompositeExtractor) Extract(ctx context.Context, record types.MemoryRecord) (Extraction, error) {
	var out Extraction
	for _, e := range c.extractors {
		result, err := e.Extract(ctx, record)
		if err != nil {
			continue
		}
		out.CoreUpdates = append(out.CoreUpdates, result.CoreUpdates...)
		out.Facts = append(out.Facts, result.Facts...)
		out.Habits = append(out.Habits, result.Habits...)
	}
	return out, nil
}
