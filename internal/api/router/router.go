package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/realty-voice-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/realty-voice-platform/internal/http/middleware"
	"github.com/wolfman30/realty-voice-platform/internal/transport"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Runner             *handlers.RunnerHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Rate limiting per client IP; zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Service auth. With neither set the API is open (local development).
	ServiceJWTSecret string
	ServiceTokens    []string
}

// New creates the scenario runner router. ctx bounds background work started
// by middleware.
func New(ctx context.Context, cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	r.Use(httpmiddleware.RateLimit(ctx, cfg.RateLimitPerSecond, cfg.RateLimitBurst))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}` + "\n"))
	})

	h := cfg.Runner
	r.Group(func(public chi.Router) {
		public.Get("/health", h.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(api chi.Router) {
		if cfg.ServiceJWTSecret != "" || len(cfg.ServiceTokens) > 0 {
			api.Use(httpmiddleware.ServiceJWT(cfg.ServiceJWTSecret, transport.RunnerAudience, cfg.ServiceTokens...))
		}
		api.Route("/scenarios", func(sc chi.Router) {
			sc.Get("/", h.ListScenarios)
			sc.Post("/", h.CreateScenario)
			sc.Route("/{name}", func(one chi.Router) {
				one.Get("/", h.GetScenario)
				one.Put("/", h.UpdateScenario)
				one.Delete("/", h.DeleteScenario)
				one.Get("/history", h.ScenarioHistory)
			})
		})
		api.Post("/run", h.RunAll)
		api.Post("/run/{name}", h.RunScenario)
		api.Post("/generate", h.Generate)
		api.Get("/prompts", h.ListPrompts)
		api.Get("/prompts/{name}", h.GetPrompt)
		api.Get("/prompt-fields/{name}", h.GetPromptFields)
	})

	return r
}
