package http

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mfontes/shortlink/internal/config"
	"github.com/mfontes/shortlink/internal/infrastructure/telemetry"
	"github.com/mfontes/shortlink/internal/shortener"
	"github.com/mfontes/shortlink/internal/transport/http/middleware"
)

var spanNames = map[string]string{
	"GET /health":                 "health",
	"GET /metrics":                "metrics",
	"POST /api/links":             "links.create",
	"GET /api/links/{code}/stats": "links.stats",
	"GET /{code}":                 "links.redirect",
}

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool

	// CreateLimiter rate limits POST /api/links when non-nil.
	CreateLimiter *middleware.RedisFixedWindowLimiter
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
	}
}

func NewRouter(cfg *config.Config, svc *shortener.Service) http.Handler {
	return NewRouterWithOptions(cfg, svc, DefaultRouterOptions())
}

func NewRouterWithOptions(cfg *config.Config, svc *shortener.Service, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler()
	linksHandler := NewLinksHandler(cfg, svc)

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", healthHandler.Metrics())

	createMiddlewares := []func(http.Handler) http.Handler{
		middleware.APIKeyMiddleware(cfg.Security.APIKeys),
	}
	if opts.CreateLimiter != nil {
		createMiddlewares = append(createMiddlewares, middleware.RateLimitMiddleware(opts.CreateLimiter))
	}

	mux.Handle("POST /api/links", middleware.Chain(
		http.HandlerFunc(linksHandler.Create),
		createMiddlewares...,
	))

	mux.HandleFunc("GET /api/links/{code}/stats", linksHandler.Stats)
	mux.HandleFunc("GET /{code}", linksHandler.Redirect)

	var innerHandler http.Handler = mux
	if opts.EnableCORS {
		innerHandler = middleware.CORSMiddleware(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}

	otelOptions := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			key := r.Method + " " + r.Pattern
			if name, ok := spanNames[key]; ok {
				return name
			}
			if r.Pattern != "" {
				return r.Pattern
			}
			path := strings.TrimSpace(r.URL.Path)
			if path == "" {
				path = "/"
			}
			return path
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name, otelOptions...)
}
