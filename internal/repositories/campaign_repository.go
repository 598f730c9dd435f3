package repositories

import (
	"context"
	"encoding/json"
	"time"

	"pinforge/internal/httpkit"
	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CampaignRepository stores campaigns, their generated pins and per-row
// errors. The campaign document (template list, mapping, inline rows, data
// url) lives in definition_json; the mutable run fields are columns so the
// pipeline can update them without rewriting the document.
type CampaignRepository struct {
	db *pgxpool.Pool
}

func NewCampaignRepository(db *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, c *models.Campaign) error {
	if err := c.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "repo.campaign.create", "invalid campaign")
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	def, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "repo.campaign.create", "encoding campaign")
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO campaigns (id, name, definition_json, total, completed, failed, status)
		VALUES ($1,$2,$3,$4,0,0,$5)
		RETURNING created_at
	`, c.ID, c.Name, def, c.Total, c.Status).Scan(&c.CreatedAt)

	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return errors.AlreadyExists("campaign", c.ID)
		}
		return errors.Wrap(err, "repo.campaign.create", "inserting campaign")
	}
	return nil
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (*models.Campaign, error) {
	var (
		def       []byte
		total     int
		completed int
		failed    int
		status    string
		createdAt time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT definition_json, total, completed, failed, status, created_at
		FROM campaigns
		WHERE id=$1
	`, id).Scan(&def, &total, &completed, &failed, &status, &createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("campaign", id)
		}
		return nil, errors.Wrap(err, "repo.campaign.get", "querying campaign")
	}
	var c models.Campaign
	if err := json.Unmarshal(def, &c); err != nil {
		return nil, errors.Wrap(err, "repo.campaign.get", "decoding campaign definition")
	}
	c.Total = total
	c.Completed = completed
	c.Failed = failed
	c.Status = models.CampaignStatus(status)
	c.CreatedAt = createdAt
	return &c, nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE campaigns SET status=$2 WHERE id=$1
	`, id, string(status))
	if err != nil {
		return errors.Wrap(err, "repo.campaign.status", "updating campaign status")
	}
	if cmd.RowsAffected() == 0 {
		return errors.NotFound("campaign", id)
	}
	return nil
}

// UpdateProgress mirrors the distributed counters; it also refreshes total so
// a campaign whose row table was fetched from a data url settles on the real
// row count.
func (r *CampaignRepository) UpdateProgress(ctx context.Context, id string, total, completed, failed int) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE campaigns SET total=$2, completed=$3, failed=$4 WHERE id=$1
	`, id, total, completed, failed)
	if err != nil {
		return errors.Wrap(err, "repo.campaign.progress", "updating campaign progress")
	}
	if cmd.RowsAffected() == 0 {
		return errors.NotFound("campaign", id)
	}
	return nil
}

func (r *CampaignRepository) SavePin(ctx context.Context, pin *models.Pin) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO pins (id, campaign_id, row_index, object_key, status, error_text)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (campaign_id, row_index) DO UPDATE
		SET id=EXCLUDED.id, object_key=EXCLUDED.object_key,
		    status=EXCLUDED.status, error_text=EXCLUDED.error_text
		RETURNING created_at
	`, pin.ID, pin.CampaignID, pin.RowIndex, pin.ObjectKey, pin.Status, pin.Error).Scan(&pin.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "repo.campaign.pin", "saving pin")
	}
	return nil
}

func (r *CampaignRepository) GetPin(ctx context.Context, campaignID string, rowIndex int) (*models.Pin, error) {
	var p models.Pin
	err := r.db.QueryRow(ctx, `
		SELECT id, campaign_id, row_index, object_key, status, error_text, created_at
		FROM pins
		WHERE campaign_id=$1 AND row_index=$2
	`, campaignID, rowIndex).Scan(&p.ID, &p.CampaignID, &p.RowIndex, &p.ObjectKey, &p.Status, &p.Error, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("pin", campaignID)
		}
		return nil, errors.Wrap(err, "repo.campaign.pin", "querying pin")
	}
	return &p, nil
}

func (r *CampaignRepository) ListPins(ctx context.Context, campaignID string) ([]models.Pin, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, campaign_id, row_index, object_key, status, error_text, created_at
		FROM pins
		WHERE campaign_id=$1
		ORDER BY row_index
	`, campaignID)
	if err != nil {
		return nil, errors.Wrap(err, "repo.campaign.pins", "querying pins")
	}
	defer rows.Close()

	var out []models.Pin
	for rows.Next() {
		var p models.Pin
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.RowIndex, &p.ObjectKey, &p.Status, &p.Error, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "repo.campaign.pins", "scanning pin row")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveRowError upserts so a row reprocessed after a crashed run keeps one
// error record, the latest.
func (r *CampaignRepository) SaveRowError(ctx context.Context, campaignID string, rowErr models.RowError) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO row_errors (campaign_id, row_index, message)
		VALUES ($1,$2,$3)
		ON CONFLICT (campaign_id, row_index) DO UPDATE SET message=EXCLUDED.message
	`, campaignID, rowErr.RowIndex, rowErr.Message)
	if err != nil {
		return errors.Wrap(err, "repo.campaign.rowerror", "saving row error")
	}
	return nil
}

func (r *CampaignRepository) ListRowErrors(ctx context.Context, campaignID string) ([]models.RowError, error) {
	rows, err := r.db.Query(ctx, `
		SELECT row_index, message
		FROM row_errors
		WHERE campaign_id=$1
		ORDER BY row_index
	`, campaignID)
	if err != nil {
		return nil, errors.Wrap(err, "repo.campaign.rowerrors", "querying row errors")
	}
	defer rows.Close()

	var out []models.RowError
	for rows.Next() {
		var re models.RowError
		if err := rows.Scan(&re.RowIndex, &re.Message); err != nil {
			return nil, errors.Wrap(err, "repo.campaign.rowerrors", "scanning row error")
		}
		out = append(out, re)
	}
	return out, rows.Err()
}
