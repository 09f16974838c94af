package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/pkg/types"
)

func TestUpsertPreservesCreatedAtOnUpdate(t *testing.T) {
	st := NewStore(nil)
	first := st.Upsert(types.Skill{ID: "s1", Name: "greet", Description: "says hello", Code: "print('hi')"})
	require.NotZero(t, first.CreatedAt)

	second := st.Upsert(types.Skill{ID: "s1", Name: "greet", Description: "says hello warmly", Code: "print('hi')"})
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "says hello warmly", second.Description)
}

func TestGetListDelete(t *testing.T) {
	st := NewStore(nil)
	st.Upsert(types.Skill{ID: "s1", Name: "b-skill"})
	st.Upsert(types.Skill{ID: "s2", Name: "a-skill"})

	list := st.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a-skill", list[0].Name)

	_, ok := st.Get("s1")
	assert.True(t, ok)

	st.Delete("s1")
	_, ok = st.Get("s1")
	assert.False(t, ok)
	assert.Len(t, st.List(), 1)
}

func TestSearchLexicalFallbackRanksBestMatch(t *testing.T) {
	st := NewStore(nil)
	st.Upsert(types.Skill{ID: "s1", Name: "weather-lookup", Description: "fetch current weather for a city", Code: "fetch(city)"})
	st.Upsert(types.Skill{ID: "s2", Name: "joke-teller", Description: "tells a short joke", Code: "tell_joke()"})

	results, err := st.Search(context.Background(), "what's the weather today", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].ID)
}

func TestSearchLexicalFallbackNearMatchOnName(t *testing.T) {
	st := NewStore(nil)
	st.Upsert(types.Skill{ID: "s1", Name: "translate", Description: "translate text between languages", Code: "translate(x)"})
	st.Upsert(types.Skill{ID: "s2", Name: "summarize", Description: "summarize a document", Code: "summarize(x)"})

	results, err := st.Search(context.Background(), "translat", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].ID)
}

func TestSearchEmptyStoreReturnsNil(t *testing.T) {
	st := NewStore(nil)
	results, err := st.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Nil(t, results)
}

type fakeEmbedder struct {
	vectors map[string][]float64
}

func (f fakeEmbedder) Embed(ctx context.Context, texts []string, modelID string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float64{0, 0}
	}
	return out, nil
}

func TestSearchUsesEmbeddingsWhenConfigured(t *testing.T) {
	embedder := fakeEmbedder{vectors: map[string][]float64{
		"find weather": {1, 0},
		"weather-lookup fetch current weather for a city fetch(city)": {1, 0},
		"joke-teller tells a short joke tell_joke()":                  {0, 1},
	}}
	st := NewStore(embedder)
	st.Upsert(types.Skill{ID: "s1", Name: "weather-lookup", Description: "fetch current weather for a city", Code: "fetch(city)"})
	st.Upsert(types.Skill{ID: "s2", Name: "joke-teller", Description: "tells a short joke", Code: "tell_joke()"})

	results, err := st.Search(context.Background(), "find weather", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].ID)
}

func TestBuildInjectionBlockFormat(t *testing.T) {
	block := BuildInjectionBlock([]types.Skill{
		{Name: "greet", Description: "says hello", Code: "print('hi')"},
	})
	assert.Equal(t, "[Skill Library]\n- greet: says hello\n```\nprint('hi')\n```\n[/Skill Library]", block)
}

func TestBuildInjectionBlockEmpty(t *testing.T) {
	assert.Equal(t, "", BuildInjectionBlock(nil))
}
