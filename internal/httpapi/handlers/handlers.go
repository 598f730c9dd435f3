// Package handlers implements the PinForge HTTP API: template and campaign
// documents, generation triggers, live progress, pause/resume and single-pin
// previews. Handlers return domain errors; the middleware wrapper maps them
// to status codes and the shared error envelope.
package handlers

import (
	"context"

	"pinforge/internal/cache"
	"pinforge/internal/models"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/ports"
)

// Store is the persistence surface the handlers use. *repositories.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	Ping(ctx context.Context) error

	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, id string) error

	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)

	ListPins(ctx context.Context, campaignID string) ([]models.Pin, error)
	GetPin(ctx context.Context, campaignID string, rowIndex int) (*models.Pin, error)
	ListRowErrors(ctx context.Context, campaignID string) ([]models.RowError, error)
}

// Queue hands campaigns off to the workers.
type Queue interface {
	Push(ctx context.Context, campaignID string) error
	Len(ctx context.Context) (int64, error)
}

// Renderer paints one template+row pair. Previews run it in-process so the
// editor sees exactly what batch output will look like.
type Renderer interface {
	RenderRow(ctx context.Context, tpl *models.Template, row models.Row, mapping map[string]string) ([]byte, error)
}

type Deps struct {
	Store    Store
	Cache    cache.Service
	Queue    Queue
	Renderer Renderer
	Storage  ports.StorageProvider
	Log      *logger.Logger
}

type Handler struct {
	store    Store
	cache    cache.Service
	queue    Queue
	renderer Renderer
	storage  ports.StorageProvider
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		store:    d.Store,
		cache:    d.Cache,
		queue:    d.Queue,
		renderer: d.Renderer,
		storage:  d.Storage,
		log:      log.WithComponent("httpapi"),
	}
}
