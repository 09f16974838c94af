package memory

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/vmoranv/cerise/internal/provider"
	"github.com/vmoranv/cerise/pkg/types"
)

const summarySystemPrompt = "Summarize memory snippets into concise bullet points. Return plain text only."

// SummaryProvider produces a short summary of records, or ("", false) to
// signal the caller should fall back to local concatenation. Grounded on
// apps/core/ai/memory/compression.py's MemorySummaryProvider protocol.
type SummaryProvider interface {
	Summarize(ctx context.Context, records []types.MemoryRecord, maxChars int) (string, bool)
}

// ProviderSummaryProvider summarizes via a chat-capable Provider.
type ProviderSummaryProvider struct {
	Provider provider.Provider
	Model    string
}

func (p ProviderSummaryProvider) Summarize(ctx context.Context, records []types.MemoryRecord, maxChars int) (string, bool) {
	if p.Provider == nil {
		return "", false
	}
	prompt := buildSummaryPrompt(records, 200)
	resp, err := p.Provider.ChatModel().Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: summarySystemPrompt},
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", false
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", false
	}
	return truncateEllipsis(summary, maxChars), true
}

func buildSummaryPrompt(records []types.MemoryRecord, perRecordLimit int) string {
	var b strings.Builder
	for _, record := range records {
		content := strings.Join(strings.Fields(record.Content), " ")
		content = truncateEllipsis(content, perRecordLimit)
		b.WriteString("- [")
		b.WriteString(record.Role)
		b.WriteString("] ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateEllipsis(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(s[:cut], " ") + "..."
}

// Compressor folds older records into a single summary record once a
// session's record count crosses Threshold. Grounded on
// apps/core/ai/memory/compression.py's MemoryCompressor.
type Compressor struct {
	Threshold       int
	Window          int
	MaxChars        int
	SummaryProvider SummaryProvider
}

func NewCompressor(cfg CompressionConfig, summaryProvider SummaryProvider) *Compressor {
	return &Compressor{
		Threshold:       cfg.Threshold,
		Window:          cfg.Window,
		MaxChars:        cfg.MaxChars,
		SummaryProvider: summaryProvider,
	}
}

// ShouldCompress reports whether recordCount warrants a compression pass.
func (c *Compressor) ShouldCompress(recordCount int) bool {
	return c.Threshold > 0 && recordCount >= c.Threshold
}

// SelectRecords returns the oldest Window non-summary, non-compressed
// records eligible for folding, or nil if there are fewer than Window of
// them. records must be ordered oldest-first.
func (c *Compressor) SelectRecords(records []types.MemoryRecord) []types.MemoryRecord {
	var candidates []types.MemoryRecord
	for _, r := range records {
		if r.Metadata.Compressed || r.Metadata.Summary {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) < c.Window {
		return nil
	}
	return candidates[:c.Window]
}

// Compress folds records into a single summary MemoryRecord, preferring the
// configured SummaryProvider and falling back to local concatenation when
// it is absent or fails.
func (c *Compressor) Compress(ctx context.Context, records []types.MemoryRecord, now int64) types.MemoryRecord {
	if c.SummaryProvider != nil {
		if summary, ok := c.SummaryProvider.Summarize(ctx, records, c.MaxChars); ok {
			return c.buildSummaryRecord(records, summary, "memory_compressor_llm", now)
		}
	}
	return c.compressLocal(records, now)
}

func (c *Compressor) compressLocal(records []types.MemoryRecord, now int64) types.MemoryRecord {
	summary := truncateEllipsis(buildSummaryPrompt(records, 160), c.MaxChars)
	return c.buildSummaryRecord(records, summary, "memory_compressor", now)
}

func (c *Compressor) buildSummaryRecord(records []types.MemoryRecord, summary string, createdBy string, now int64) types.MemoryRecord {
	sourceIDs := make([]string, len(records))
	first, last := records[0].CreatedAt, records[0].CreatedAt
	for i, r := range records {
		sourceIDs[i] = r.ID
		if r.CreatedAt < first {
			first = r.CreatedAt
		}
		if r.CreatedAt > last {
			last = r.CreatedAt
		}
	}
	return types.MemoryRecord{
		SessionID: records[0].SessionID,
		Role:      "system",
		Content:   "Memory Summary:\n" + summary,
		CreatedAt: now,
		Metadata: types.MemoryMetadata{
			Summary:       true,
			Compressed:    true,
			SourceIDs:     sourceIDs,
			SourceCount:   len(records),
			SourceFirstAt: &first,
			SourceLastAt:  &last,
			CreatedBy:     createdBy,
		},
	}
}
