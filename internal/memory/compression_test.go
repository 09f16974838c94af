package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/pkg/types"
)

func TestCompressorShouldCompress(t *testing.T) {
	c := &Compressor{Threshold: 10}
	assert.False(t, c.ShouldCompress(9))
	assert.True(t, c.ShouldCompress(10))

	disabled := &Compressor{Threshold: 0}
	assert.False(t, disabled.ShouldCompress(1000))
}

func TestCompressorSelectRecordsRequiresFullWindow(t *testing.T) {
	c := &Compressor{Window: 3}
	records := []types.MemoryRecord{
		{ID: "1"}, {ID: "2"},
	}
	assert.Nil(t, c.SelectRecords(records))

	records = append(records, types.MemoryRecord{ID: "3"}, types.MemoryRecord{ID: "4"})
	selected := c.SelectRecords(records)
	require.Len(t, selected, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{selected[0].ID, selected[1].ID, selected[2].ID})
}

func TestCompressorSelectRecordsSkipsAlreadyCompressed(t *testing.T) {
	c := &Compressor{Window: 2}
	records := []types.MemoryRecord{
		{ID: "1", Metadata: types.MemoryMetadata{Summary: true}},
		{ID: "2"},
		{ID: "3"},
	}
	selected := c.SelectRecords(records)
	require.Len(t, selected, 2)
	assert.Equal(t, []string{"2", "3"}, []string{selected[0].ID, selected[1].ID})
}

func TestCompressorCompressLocalFallback(t *testing.T) {
	c := &Compressor{Window: 2, MaxChars: 800}
	records := []types.MemoryRecord{
		{ID: "1", SessionID: "s1", Role: "user", Content: "hello there", CreatedAt: 100},
		{ID: "2", SessionID: "s1", Role: "assistant", Content: "hi back", CreatedAt: 200},
	}

	summary := c.Compress(context.Background(), records, 300)

	assert.True(t, summary.Metadata.Summary)
	assert.True(t, summary.Metadata.Compressed)
	assert.Equal(t, "memory_compressor", summary.Metadata.CreatedBy)
	assert.Equal(t, []string{"1", "2"}, summary.Metadata.SourceIDs)
	assert.Equal(t, 2, summary.Metadata.SourceCount)
	require.NotNil(t, summary.Metadata.SourceFirstAt)
	require.NotNil(t, summary.Metadata.SourceLastAt)
	assert.Equal(t, int64(100), *summary.Metadata.SourceFirstAt)
	assert.Equal(t, int64(200), *summary.Metadata.SourceLastAt)
	assert.Contains(t, summary.Content, "Memory Summary:")
}

type fakeSummaryProvider struct {
	summary string
	ok      bool
}

func (f fakeSummaryProvider) Summarize(context.Context, []types.MemoryRecord, int) (string, bool) {
	return f.summary, f.ok
}

func TestCompressorPrefersSummaryProvider(t *testing.T) {
	c := &Compressor{Window: 1, MaxChars: 800, SummaryProvider: fakeSummaryProvider{summary: "LLM summary", ok: true}}
	records := []types.MemoryRecord{{ID: "1", SessionID: "s1", Role: "user", Content: "hi", CreatedAt: 1}}

	summary := c.Compress(context.Background(), records, 2)

	assert.Equal(t, "memory_compressor_llm", summary.Metadata.CreatedBy)
	assert.Contains(t, summary.Content, "LLM summary")
}

func TestCompressorFallsBackWhenSummaryProviderDeclines(t *testing.T) {
	c := &Compressor{Window: 1, MaxChars: 800, SummaryProvider: fakeSummaryProvider{ok: false}}
	records := []types.MemoryRecord{{ID: "1", SessionID: "s1", Role: "user", Content: "hi", CreatedAt: 1}}

	summary := c.Compress(context.Background(), records, 2)

	assert.Equal(t, "memory_compressor", summary.Metadata.CreatedBy)
}
