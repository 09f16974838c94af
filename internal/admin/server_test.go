package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/internal/plugin"
	"github.com/vmoranv/cerise/internal/state"
	"github.com/vmoranv/cerise/pkg/types"
)

type fakeMemoryStats struct{ total int }

func (f fakeMemoryStats) TotalCount(ctx context.Context) (int, error) { return f.total, nil }

func newTestServer(t *testing.T, adminCfg types.AdminConfig) *Server {
	t.Helper()
	store := state.OpenMemory()
	reg := ability.NewRegistry()
	scheduler := ability.NewScheduler(reg, true, true, nil)
	pluginsDir := t.TempDir()
	return New(DefaultConfig(), adminCfg, store, plugin.NewInstaller(pluginsDir), plugin.NewManager(pluginsDir, reg), scheduler, fakeMemoryStats{total: 3})
}

func TestHealthRequiresTokenWhenConfigured(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAcceptsBearerToken(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAcceptsAdminTokenHeader(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthRejectsWrongToken(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAllowsLocalhostWithoutToken(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{})

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthRejectsNonLocalhostWithoutToken(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{})

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListPluginsReflectsRegistryAdd(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{})
	require.NoError(t, s.registry.Add(types.InstalledPlugin{Name: "acme", Version: "1.0.0", Source: "upload"}))

	req := httptest.NewRequest(http.MethodGet, "/admin/plugins", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Plugins []types.InstalledPlugin `json:"plugins"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Plugins, 1)
	assert.Equal(t, "acme", body.Plugins[0].Name)
}

func TestSetStarUpdatesSchedulerPolicy(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{})
	s.scheduler = ability.NewScheduler(ability.NewRegistry(), true, true, func(a string) (string, bool) {
		if a == "plugin_acme__tool" {
			return "acme", true
		}
		return "", false
	})

	body, _ := json.Marshal(types.StarEntry{Enabled: false, AllowTools: false})
	req := httptest.NewRequest(http.MethodPost, "/admin/plugins/acme/stars", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	decision := s.scheduler.Resolve("plugin_acme__tool")
	assert.False(t, decision.Enabled)
}

func TestMemoryStatsReturnsTotalCount(t *testing.T) {
	s := newTestServer(t, types.AdminConfig{})

	req := httptest.NewRequest(http.MethodGet, "/admin/memory/stats", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["total_records"])
}
