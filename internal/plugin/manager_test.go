package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/internal/ability"
)

func writeManifest(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(validManifest), 0o644))
}

func TestDiscoverSkipsUnderscorePrefixedDirs(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "acme"))
	writeManifest(t, filepath.Join(root, "_hidden"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-manifest"), 0o755))

	m := NewManager(root, ability.NewRegistry())
	manifests, err := m.Discover()
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Contains(t, manifests[0], "acme")
}

func TestDiscoverMissingDirReturnsNil(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"), ability.NewRegistry())
	manifests, err := m.Discover()
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestUnloadUnknownPluginIsIdempotent(t *testing.T) {
	m := NewManager(t.TempDir(), ability.NewRegistry())
	assert.False(t, m.Unload("never-loaded"))
}
