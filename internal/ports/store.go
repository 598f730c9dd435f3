package ports

import (
	"context"

	"pinforge/internal/models"
)

// Store is the persistence port the batch pipeline works against, never the
// concrete repositories, so tests run against an in-memory fake. The HTTP
// handlers declare their own store interface in the handlers package.
type Store interface {
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)

	// UpdateCampaignStatus moves the campaign through its run state machine.
	UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error
	// UpdateCampaignProgress mirrors the distributed counters into the store.
	UpdateCampaignProgress(ctx context.Context, id string, total, completed, failed int) error

	SavePin(ctx context.Context, pin *models.Pin) error
	ListPins(ctx context.Context, campaignID string) ([]models.Pin, error)

	SaveRowError(ctx context.Context, campaignID string, rowErr models.RowError) error
	ListRowErrors(ctx context.Context, campaignID string) ([]models.RowError, error)
}
