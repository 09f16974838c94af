// Package admin provides the thin administrative HTTP surface described in
// §6 External Interfaces: health, plugin install/list/star, and memory
// stats, gated by a constant-time admin-token check. Grounded on the
// teacher's internal/server.Server - same chi router/middleware stack and
// response helper shape - cut down from its ~60-route coding-agent API
// surface to the handful of routes Part D.4 actually names.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vmoranv/cerise/internal/ability"
	"github.com/vmoranv/cerise/internal/plugin"
	"github.com/vmoranv/cerise/internal/state"
	"github.com/vmoranv/cerise/pkg/types"
)

// Config holds the admin HTTP server's own listen settings, separate from
// types.AdminConfig which holds the access-gate token.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{Port: 8099, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}
}

// MemoryStats is the subset of the Memory Engine's store the admin surface
// needs for GET /admin/memory/stats.
type MemoryStats interface {
	TotalCount(ctx context.Context) (int, error)
}

// Server is the admin HTTP server.
type Server struct {
	config    *Config
	adminCfg  types.AdminConfig
	router    *chi.Mux
	httpSrv   *http.Server
	registry  *Registry
	installer *plugin.Installer
	manager   *plugin.Manager
	scheduler *ability.Scheduler
	memory    MemoryStats
}

// New builds a Server. store backs the installed-plugin registry (a
// sub-namespace, so it can share a process-wide state.Store with every
// other component). installer/manager/scheduler are constructed once at
// the composition root and shared with the rest of the process - the
// Manager in particular must wrap the same ability.Registry the
// Capability Scheduler resolves against, so admin never owns its own copy.
func New(cfg *Config, adminCfg types.AdminConfig, store *state.Store, installer *plugin.Installer, manager *plugin.Manager, scheduler *ability.Scheduler, memory MemoryStats) *Server {
	s := &Server{
		config:    cfg,
		adminCfg:  adminCfg,
		router:    chi.NewRouter(),
		registry:  NewRegistry(store.Namespace("admin_plugins")),
		installer: installer,
		manager:   manager,
		scheduler: scheduler,
		memory:    memory,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token"},
		MaxAge:         300,
	}))
	s.router.Use(s.tokenAuth)
}

func (s *Server) setupRoutes() {
	s.router.Get("/admin/health", s.handleHealth)
	s.router.Post("/admin/plugins/install", s.handleInstallPlugin)
	s.router.Get("/admin/plugins", s.handleListPlugins)
	s.router.Post("/admin/plugins/{name}/stars", s.handleSetStar)
	s.router.Get("/admin/memory/stats", s.handleMemoryStats)
}

// Router exposes the chi router for testing.
func (s *Server) Router() *chi.Mux { return s.router }

func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
