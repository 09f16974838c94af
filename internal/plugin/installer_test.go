package plugin

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const validManifest = `{"name":"acme","version":"1.0.0","entry_point":"main.py","class_name":"AcmePlugin","runtime":{"language":"python","entry":"main.py","transport":"stdio"}}`

func TestInstallZipHappyPath(t *testing.T) {
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"manifest.json": validManifest,
		"main.py":       "print('hi')",
	})

	inst := NewInstaller(dir)
	result, err := inst.InstallZip(archive, "upload", "")
	require.NoError(t, err)
	assert.Equal(t, "acme", result.Installed.Name)
	assert.DirExists(t, filepath.Join(dir, "acme"))
	assert.FileExists(t, filepath.Join(dir, "acme", "main.py"))
}

func TestInstallZipRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"manifest.json": validManifest,
		"../../evil.sh": "rm -rf /",
	})

	inst := NewInstaller(dir)
	_, err := inst.InstallZip(archive, "upload", "")
	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "acme"))
}

func TestInstallZipRejectsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"manifest.json": validManifest,
		"/etc/passwd":   "root:x:0:0",
	})

	inst := NewInstaller(dir)
	_, err := inst.InstallZip(archive, "upload", "")
	assert.Error(t, err)
}

func TestInstallZipRejectsDriveLetterPath(t *testing.T) {
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{
		"manifest.json":   validManifest,
		`C:\Windows\evil`: "x",
	})

	inst := NewInstaller(dir)
	_, err := inst.InstallZip(archive, "upload", "")
	assert.Error(t, err)
}

func TestInstallZipMissingManifest(t *testing.T) {
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{"readme.txt": "no manifest here"})

	inst := NewInstaller(dir)
	_, err := inst.InstallZip(archive, "upload", "")
	assert.Error(t, err)
}

func TestSafePluginNameRejectsDotDot(t *testing.T) {
	_, err := SafePluginName("..")
	assert.Error(t, err)

	_, err = SafePluginName(".")
	assert.Error(t, err)
}

func TestSafePluginNameStripsSeparators(t *testing.T) {
	name, err := SafePluginName("a/b\\c:d")
	require.NoError(t, err)
	assert.Equal(t, "abcd", name)
}
