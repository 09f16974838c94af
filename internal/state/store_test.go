package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := OpenMemory()
	require.NoError(t, s.Set("a.b.c", 42))

	var got int
	ok, err := s.Get("a.b.c", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestDeleteThenNotExists(t *testing.T) {
	s := OpenMemory()
	require.NoError(t, s.Set("x.y", "v"))
	assert.True(t, s.Exists("x.y"))

	require.NoError(t, s.Delete("x.y"))
	assert.False(t, s.Exists("x.y"))
}

func TestIdempotentWrites(t *testing.T) {
	s := OpenMemory()
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Set("k", "v"))

	var got string
	ok, err := s.Get("k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestNamespaceView(t *testing.T) {
	s := OpenMemory()
	ns := s.Namespace("proactive.sessions")
	require.NoError(t, ns.Set("s1", map[string]any{"unanswered_count": 2}))

	var viaRoot map[string]any
	ok, err := s.Get("proactive.sessions.s1", &viaRoot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(2), viaRoot["unanswered_count"])

	var viaNS map[string]any
	ok, err = ns.Get("s1", &viaNS)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, viaRoot, viaNS)
}

func TestPersistAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set("a", "b"))

	s2, err := Open(path)
	require.NoError(t, err)
	var got string
	ok, err := s2.Get("a", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", got)
}

func TestCorruptDocumentRecoversEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	assert.False(t, s.Exists("anything"))
}
