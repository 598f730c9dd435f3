// Package httpapi assembles the PinForge API: routes, middleware chain and
// CORS. All request handling lives in the handlers subpackage.
package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pinforge/internal/cache"
	"pinforge/internal/httpapi/handlers"
	"pinforge/internal/httpkit"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/pkg/middleware"
	"pinforge/internal/ports"
)

// Deps carries everything the API surface needs. The renderer serves
// previews in-process; batch generation goes through Queue to the workers.
type Deps struct {
	Store    handlers.Store
	Cache    cache.Service
	Queue    handlers.Queue
	Renderer handlers.Renderer
	Storage  ports.StorageProvider
	Log      *logger.Logger

	// RequestTimeout bounds every request context. Zero means 30s.
	RequestTimeout time.Duration
	// TriggerLimit caps generate/resume calls per client per minute.
	// Zero means 10.
	TriggerLimit int
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	triggerLimit := d.TriggerLimit
	if triggerLimit <= 0 {
		triggerLimit = 10
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(middleware.Timeout(timeout))

	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Store:    d.Store,
		Cache:    d.Cache,
		Queue:    d.Queue,
		Renderer: d.Renderer,
		Storage:  d.Storage,
		Log:      log,
	})

	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(log, fn)
	}
	limitTrigger := middleware.RateLimit(d.Cache, triggerLimit, time.Minute, log)

	r.Get("/health", h.Health)

	r.Post("/templates", wrap(h.CreateTemplate))
	r.Get("/templates", wrap(h.ListTemplates))
	r.Get("/templates/{templateId}", wrap(h.GetTemplate))
	r.Delete("/templates/{templateId}", wrap(h.DeleteTemplate))

	r.Post("/campaigns", wrap(h.CreateCampaign))
	r.Get("/campaigns/{campaignId}", wrap(h.GetCampaign))
	r.With(limitTrigger).Post("/campaigns/{campaignId}/generate", wrap(h.GenerateCampaign))
	r.Get("/campaigns/{campaignId}/progress", wrap(h.CampaignProgress))
	r.Post("/campaigns/{campaignId}/pause", wrap(h.PauseCampaign))
	r.With(limitTrigger).Post("/campaigns/{campaignId}/resume", wrap(h.ResumeCampaign))
	r.Get("/campaigns/{campaignId}/errors", wrap(h.CampaignErrors))
	r.Get("/campaigns/{campaignId}/pins", wrap(h.ListPins))
	r.Get("/campaigns/{campaignId}/pins/{rowIndex}/url", wrap(h.PinURL))
	r.Get("/campaigns/{campaignId}/pins/{rowIndex}/content", wrap(h.PinContent))

	r.Post("/preview", wrap(h.Preview))

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
