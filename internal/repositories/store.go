package repositories

import (
	"context"

	"pinforge/internal/models"
	"pinforge/internal/ports"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the per-aggregate repositories behind the ports.Store port.
type Store struct {
	db        *pgxpool.Pool
	Templates *TemplateRepository
	Campaigns *CampaignRepository
}

var _ ports.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:        db,
		Templates: NewTemplateRepository(db),
		Campaigns: NewCampaignRepository(db),
	}
}

// Ping verifies database connectivity, used by deep health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) CreateTemplate(ctx context.Context, t *models.Template) error {
	return s.Templates.Create(ctx, t)
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	return s.Templates.Get(ctx, id)
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	return s.Templates.List(ctx)
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.Templates.Delete(ctx, id)
}

func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	return s.Campaigns.Create(ctx, c)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	return s.Campaigns.Get(ctx, id)
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	return s.Campaigns.UpdateStatus(ctx, id, status)
}

func (s *Store) UpdateCampaignProgress(ctx context.Context, id string, total, completed, failed int) error {
	return s.Campaigns.UpdateProgress(ctx, id, total, completed, failed)
}

func (s *Store) SavePin(ctx context.Context, pin *models.Pin) error {
	return s.Campaigns.SavePin(ctx, pin)
}

func (s *Store) GetPin(ctx context.Context, campaignID string, rowIndex int) (*models.Pin, error) {
	return s.Campaigns.GetPin(ctx, campaignID, rowIndex)
}

func (s *Store) ListPins(ctx context.Context, campaignID string) ([]models.Pin, error) {
	return s.Campaigns.ListPins(ctx, campaignID)
}

func (s *Store) SaveRowError(ctx context.Context, campaignID string, rowErr models.RowError) error {
	return s.Campaigns.SaveRowError(ctx, campaignID, rowErr)
}

func (s *Store) ListRowErrors(ctx context.Context, campaignID string) ([]models.RowError, error) {
	return s.Campaigns.ListRowErrors(ctx, campaignID)
}
