package api

import (
	"context"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skridlevsky/interest-dash/internal/interest"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	SiteRoot    string
	Cache       interface{ Health(context.Context) error }
	Reports     ReportProvider
	Query       interest.Query
	Title       string
	CORSOrigins []string
	Development bool
}

// RouterResult holds the router and resources that need cleanup
type RouterResult struct {
	Router       *chi.Mux
	RateLimiters *RateLimiters
}

// NewRouter creates and configures the HTTP router. Every route is served
// under cfg.SiteRoot. Caller must call result.RateLimiters.Stop() on shutdown.
func NewRouter(cfg *RouterConfig) *RouterResult {
	r := chi.NewRouter()

	rateLimiters := NewRateLimiters()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.CORSOrigins, cfg.Development))
	r.Use(rateLimiters.Pages.Middleware)

	dashboard := NewDashboardHandler(cfg.Reports, cfg.Query, cfg.Title, rateLimiters.Refresh)

	routes := func(r chi.Router) {
		r.Get("/", dashboard.Page)
		r.Get("/api/interest", dashboard.JSON)
		r.With(rateLimiters.ExportGuardMiddleware).
			Get("/export.csv", dashboard.Export)

		if cfg.Cache != nil {
			r.Get("/api/health", NewHealthHandler(cfg.Cache))
		} else {
			r.Get("/api/health", HealthHandler)
		}
	}

	if root := strings.TrimSuffix(cfg.SiteRoot, "/"); root != "" {
		r.Route(root, routes)
	} else {
		routes(r)
	}

	return &RouterResult{
		Router:       r,
		RateLimiters: rateLimiters,
	}
}
