package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/vmoranv/cerise/pkg/types"
)

const maxInstallArchiveBytes = 32 << 20 // 32MiB, generous for a plugin zip

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleInstallPlugin installs an uploaded plugin zip (request body),
// per §4.4's upload source. ?source and ?source_url tag the resulting
// InstalledPlugin row; default source is "upload".
func (s *Server) handleInstallPlugin(w http.ResponseWriter, r *http.Request) {
	archive, err := io.ReadAll(io.LimitReader(r.Body, maxInstallArchiveBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
		return
	}
	if len(archive) > maxInstallArchiveBytes {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "archive exceeds maximum size")
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "upload"
	}
	sourceURL := r.URL.Query().Get("source_url")

	result, err := s.installer.InstallZip(archive, source, sourceURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INSTALL_FAILED", err.Error())
		return
	}

	if err := s.registry.Add(result.Installed); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to persist plugin registry")
		return
	}

	manifestPath := filepath.Join(result.Dir, "manifest.json")
	if err := s.manager.Load(r.Context(), manifestPath, nil); err != nil {
		writeError(w, http.StatusInternalServerError, "LOAD_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result.Installed)
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plugins": s.registry.List()})
}

// handleSetStar installs or replaces a plugin's star policy entry, per
// §4.3's capability-scheduler star level. Request body is a types.StarEntry.
func (s *Server) handleSetStar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing plugin name")
		return
	}

	var entry types.StarEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid star entry body")
		return
	}

	s.scheduler.SetStar(name, entry)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeJSON(w, http.StatusOK, map[string]any{"total_records": 0})
		return
	}
	count, err := s.memory.TotalCount(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read memory stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_records": count})
}
