package plugin

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmoranv/cerise/internal/cerr"
	"github.com/vmoranv/cerise/pkg/types"
)

// Installer extracts plugin archives into a plugins directory, per §4.4's
// install-from-GitHub/local-zip/uploaded-zip flow. The archive fetch step
// (GitHub download, or reading a local/uploaded file into bytes) is left to
// the caller; Installer starts from raw zip bytes so all three sources
// share one code path.
type Installer struct {
	pluginsDir string
}

// NewInstaller roots an Installer at pluginsDir.
func NewInstaller(pluginsDir string) *Installer {
	return &Installer{pluginsDir: pluginsDir}
}

// SafePluginName derives a filesystem-safe plugin name from raw: strips
// path separators and ':', and rejects "." or "..", per the Plugin
// manifest invariant in §3.
func SafePluginName(raw string) (string, error) {
	name := raw
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.ReplaceAll(name, ":", "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", cerr.New(cerr.InvalidArgument, "plugin.SafePluginName", fmt.Errorf("unsafe plugin name %q", raw))
	}
	return name, nil
}

// locateManifest finds manifest.json at the archive root or one level deep
// and returns its path within the zip.
func locateManifest(r *zip.Reader) (string, error) {
	for _, f := range r.File {
		clean := strings.TrimPrefix(f.Name, "./")
		parts := strings.Split(clean, "/")
		if len(parts) == 1 && parts[0] == "manifest.json" {
			return f.Name, nil
		}
		if len(parts) == 2 && parts[1] == "manifest.json" {
			return f.Name, nil
		}
	}
	return "", cerr.New(cerr.NotFound, "plugin.locateManifest", fmt.Errorf("manifest.json not found at archive root or one level deep"))
}

// preflightEntry rejects a zip entry whose relative path is absolute,
// contains "..", or whose first path component looks like a Windows drive
// letter (contains ':'). Called before any filesystem write, per §4.4.
func preflightEntry(name string) error {
	clean := filepath.ToSlash(name)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("zip entry %q: absolute paths are not allowed", name)
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return fmt.Errorf("zip entry %q: path traversal is not allowed", name)
		}
	}
	first := strings.SplitN(clean, "/", 2)[0]
	if strings.Contains(first, ":") {
		return fmt.Errorf("zip entry %q: drive-letter paths are not allowed", name)
	}
	return nil
}

// InstallResult is returned on a successful install.
type InstallResult struct {
	Manifest  types.PluginManifest
	Installed types.InstalledPlugin
	Dir       string
}

// InstallZip validates, preflights, and extracts archive into
// <pluginsDir>/<safe name>. source/sourceURL are recorded on the returned
// InstalledPlugin record for the caller to persist into plugins.json.
func (i *Installer) InstallZip(archive []byte, source, sourceURL string) (*InstallResult, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, cerr.New(cerr.InvalidArgument, "plugin.InstallZip", err)
	}

	manifestEntry, err := locateManifest(r)
	if err != nil {
		return nil, err
	}
	manifestRoot := filepath.Dir(manifestEntry)
	if manifestRoot == "." {
		manifestRoot = ""
	}

	manifestFile, err := r.Open(manifestEntry)
	if err != nil {
		return nil, cerr.New(cerr.Transport, "plugin.InstallZip", err)
	}
	manifestBytes, err := io.ReadAll(manifestFile)
	manifestFile.Close()
	if err != nil {
		return nil, cerr.New(cerr.Transport, "plugin.InstallZip", err)
	}

	tmpManifestPath := filepath.Join(os.TempDir(), fmt.Sprintf("cerise-plugin-manifest-%d.json", time.Now().UnixNano()))
	if err := os.WriteFile(tmpManifestPath, manifestBytes, 0o600); err != nil {
		return nil, cerr.New(cerr.Transport, "plugin.InstallZip", err)
	}
	defer os.Remove(tmpManifestPath)
	manifest, err := readManifest(tmpManifestPath)
	if err != nil {
		return nil, err
	}

	safeName, err := SafePluginName(manifest.Name)
	if err != nil {
		return nil, err
	}

	// Preflight every entry before any filesystem write.
	for _, f := range r.File {
		rel := strings.TrimPrefix(f.Name, manifestRoot)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			continue
		}
		if err := preflightEntry(rel); err != nil {
			return nil, cerr.New(cerr.InvalidArgument, "plugin.InstallZip", err)
		}
	}

	targetDir := filepath.Join(i.pluginsDir, safeName)
	if err := os.RemoveAll(targetDir); err != nil {
		return nil, cerr.New(cerr.Transport, "plugin.InstallZip", err)
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, cerr.New(cerr.Transport, "plugin.InstallZip", err)
	}

	if err := extractAll(r, manifestRoot, targetDir); err != nil {
		os.RemoveAll(targetDir)
		return nil, err
	}

	return &InstallResult{
		Manifest: manifest,
		Installed: types.InstalledPlugin{
			Name:        safeName,
			Version:     manifest.Version,
			Source:      source,
			SourceURL:   sourceURL,
			Enabled:     true,
			InstalledAt: time.Now().UnixMilli(),
		},
		Dir: targetDir,
	}, nil
}

// extractAll writes every archive entry under manifestRoot into targetDir,
// re-checking containment on each resolved destination path.
func extractAll(r *zip.Reader, manifestRoot, targetDir string) error {
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return cerr.New(cerr.Transport, "plugin.extractAll", err)
	}

	for _, f := range r.File {
		rel := strings.TrimPrefix(f.Name, manifestRoot)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			continue
		}

		dest := filepath.Join(targetDir, filepath.FromSlash(rel))
		absDest, err := filepath.Abs(dest)
		if err != nil {
			return cerr.New(cerr.Transport, "plugin.extractAll", err)
		}
		if !strings.HasPrefix(absDest, absTarget+string(filepath.Separator)) && absDest != absTarget {
			return cerr.New(cerr.InvalidArgument, "plugin.extractAll", fmt.Errorf("entry %q escapes plugin directory", f.Name))
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(absDest, 0o755); err != nil {
				return cerr.New(cerr.Transport, "plugin.extractAll", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(absDest), 0o755); err != nil {
			return cerr.New(cerr.Transport, "plugin.extractAll", err)
		}

		rc, err := f.Open()
		if err != nil {
			return cerr.New(cerr.Transport, "plugin.extractAll", err)
		}
		out, err := os.OpenFile(absDest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return cerr.New(cerr.Transport, "plugin.extractAll", err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return cerr.New(cerr.Transport, "plugin.extractAll", copyErr)
		}
	}
	return nil
}
