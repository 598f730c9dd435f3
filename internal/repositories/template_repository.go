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

// TemplateRepository stores authored designs. The whole template document
// lives in definition_json; id, name and timestamps are lifted into columns
// for listing and soft deletes.
type TemplateRepository struct {
	db *pgxpool.Pool
}

func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	if err := t.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "repo.template.create", "invalid template")
	}
	def, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "repo.template.create", "encoding template")
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO templates (id, name, definition_json)
		VALUES ($1,$2,$3)
		RETURNING created_at
	`, t.ID, t.Name, def).Scan(&t.CreatedAt)

	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return errors.AlreadyExists("template", t.ID)
		}
		return errors.Wrap(err, "repo.template.create", "inserting template")
	}
	return nil
}

// List returns id/name/created_at summaries without element definitions.
func (r *TemplateRepository) List(ctx context.Context) ([]models.Template, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, created_at
		FROM templates
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "repo.template.list", "querying templates")
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "repo.template.list", "scanning template row")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) Get(ctx context.Context, id string) (*models.Template, error) {
	var (
		def       []byte
		createdAt time.Time
		deletedAt *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT definition_json, created_at, deleted_at
		FROM templates
		WHERE id=$1
	`, id).Scan(&def, &createdAt, &deletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("template", id)
		}
		return nil, errors.Wrap(err, "repo.template.get", "querying template")
	}
	var t models.Template
	if err := json.Unmarshal(def, &t); err != nil {
		return nil, errors.Wrap(err, "repo.template.get", "decoding template definition")
	}
	t.CreatedAt = createdAt
	t.DeletedAt = deletedAt
	return &t, nil
}

// Delete soft-deletes; the definition stays readable through Get for
// campaigns that still reference it.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE templates
		SET deleted_at=now()
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return errors.Wrap(err, "repo.template.delete", "updating template")
	}
	if cmd.RowsAffected() == 0 {
		return errors.NotFound("template", id)
	}
	return nil
}
