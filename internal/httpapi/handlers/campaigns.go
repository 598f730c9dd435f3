package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pinforge/internal/cache"
	"pinforge/internal/httpapi/util"
	"pinforge/internal/httpkit"
	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/ports"
)

// CreateCampaign stores a campaign document. Referenced templates must
// exist; row data may be inline or behind a data url resolved at run time.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var c models.Campaign
	if err := httpkit.DecodeJSON(r, &c); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "api.campaign.create", "invalid json body")
	}

	if c.ID == "" {
		c.ID = util.NewID("camp")
	}
	c.Name = strings.TrimSpace(c.Name)

	for _, tid := range c.TemplateIDs {
		if _, err := h.store.GetTemplate(ctx, tid); err != nil {
			if errors.IsNotFound(err) {
				return errors.Validationf("unknown template: %s", tid).WithField("templateId", tid)
			}
			return err
		}
	}

	// Inline rows fix the total now; a data url settles it when the worker
	// fetches the table.
	if len(c.Rows) > 0 {
		c.Total = len(c.Rows)
	} else {
		c.Total = 0
	}
	c.Completed = 0
	c.Failed = 0
	c.Status = models.StatusPending

	if err := h.store.CreateCampaign(ctx, &c); err != nil {
		return err
	}

	h.log.FromContext(ctx).Info("campaign created",
		"campaign_id", c.ID,
		"templates", len(c.TemplateIDs),
		"rows", len(c.Rows),
	)

	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"campaign": &c})
	return nil
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")

	c, err := h.store.GetCampaign(r.Context(), campaignID)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"campaign": c})
	return nil
}

// GenerateCampaign enqueues the campaign for the workers. Triggering twice
// is harmless: whichever worker loses the campaign lock skips.
func (h *Handler) GenerateCampaign(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")
	ctx := logger.ContextWithCampaignID(r.Context(), campaignID)

	c, err := h.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	if err := h.queue.Push(ctx, c.ID); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "api.campaign.generate", "enqueueing campaign")
	}

	h.log.FromContext(ctx).Info("campaign enqueued", "campaign_id", c.ID)

	httpkit.WriteJSON(w, http.StatusAccepted, map[string]any{
		"campaignId": c.ID,
		"status":     "queued",
	})
	return nil
}

// CampaignProgress reads the live counters from the cache and falls back
// to the store mirror when the cache is empty or unreachable.
func (h *Handler) CampaignProgress(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")
	ctx := r.Context()

	fields, err := h.cache.GetFields(ctx, cache.ProgressKey(campaignID))
	if err == nil && len(fields) > 0 {
		httpkit.WriteJSON(w, http.StatusOK, map[string]any{
			"progress": progressFromFields(campaignID, fields),
			"source":   "cache",
		})
		return nil
	}

	c, err := h.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"progress": models.Progress{
			CampaignID: c.ID,
			Total:      c.Total,
			Completed:  c.Completed,
			Failed:     c.Failed,
			Status:     c.Status,
		},
		"source": "store",
	})
	return nil
}

func progressFromFields(campaignID string, f map[string]string) models.Progress {
	atoi := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}
	return models.Progress{
		CampaignID: campaignID,
		Total:      atoi(f[cache.FieldTotal]),
		Completed:  atoi(f[cache.FieldCompleted]),
		Failed:     atoi(f[cache.FieldFailed]),
		Cursor:     atoi(f[cache.FieldCursor]),
		Status:     models.CampaignStatus(f[cache.FieldStatus]),
	}
}

// PauseCampaign raises the cooperative pause flag. Whichever worker holds
// the campaign observes it at the next batch boundary, persists its cursor
// and releases the lock.
func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")
	ctx := logger.ContextWithCampaignID(r.Context(), campaignID)

	if _, err := h.store.GetCampaign(ctx, campaignID); err != nil {
		return err
	}

	if err := h.cache.Set(ctx, cache.PauseKey(campaignID), "1", 0); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "api.campaign.pause", "setting pause flag")
	}

	h.log.FromContext(ctx).Info("pause requested", "campaign_id", campaignID)

	httpkit.WriteJSON(w, http.StatusAccepted, map[string]any{
		"campaignId": campaignID,
		"status":     "pause-requested",
	})
	return nil
}

// ResumeCampaign clears the pause flag and re-enqueues the campaign. The
// run continues from its persisted cursor.
func (h *Handler) ResumeCampaign(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")
	ctx := logger.ContextWithCampaignID(r.Context(), campaignID)

	if _, err := h.store.GetCampaign(ctx, campaignID); err != nil {
		return err
	}

	if err := h.cache.Delete(ctx, cache.PauseKey(campaignID)); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "api.campaign.resume", "clearing pause flag")
	}
	if err := h.queue.Push(ctx, campaignID); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "api.campaign.resume", "enqueueing campaign")
	}

	h.log.FromContext(ctx).Info("campaign resumed", "campaign_id", campaignID)

	httpkit.WriteJSON(w, http.StatusAccepted, map[string]any{
		"campaignId": campaignID,
		"status":     "queued",
	})
	return nil
}

func (h *Handler) CampaignErrors(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")
	ctx := r.Context()

	if _, err := h.store.GetCampaign(ctx, campaignID); err != nil {
		return err
	}

	rowErrors, err := h.store.ListRowErrors(ctx, campaignID)
	if err != nil {
		return err
	}
	if rowErrors == nil {
		rowErrors = []models.RowError{}
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"campaignId": campaignID,
		"errors":     rowErrors,
	})
	return nil
}

func (h *Handler) ListPins(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")
	ctx := r.Context()

	if _, err := h.store.GetCampaign(ctx, campaignID); err != nil {
		return err
	}

	pins, err := h.store.ListPins(ctx, campaignID)
	if err != nil {
		return err
	}
	if pins == nil {
		pins = []models.Pin{}
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"campaignId": campaignID,
		"pins":       pins,
	})
	return nil
}

// PinURL returns a time-limited link to one rendered pin. Providers without
// link sharing fall back to this API's streaming endpoint.
func (h *Handler) PinURL(w http.ResponseWriter, r *http.Request) error {
	campaignID := chi.URLParam(r, "campaignId")
	ctx := r.Context()

	pin, rowIndex, err := h.renderedPin(r)
	if err != nil {
		return err
	}

	out, err := h.storage.GetSignedURL(ctx, pin.ObjectKey, 30*time.Minute)
	if err != nil {
		if errors.Is(err, ports.ErrSignedURLUnsupported) {
			httpkit.WriteJSON(w, http.StatusOK, map[string]any{
				"campaignId": campaignID,
				"rowIndex":   rowIndex,
				"url":        "/campaigns/" + campaignID + "/pins/" + strconv.Itoa(rowIndex) + "/content",
			})
			return nil
		}
		return errors.Wrap(err, "api.pin.url", "signing pin url")
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"campaignId": campaignID,
		"rowIndex":   rowIndex,
		"url":        out.URL,
		"expires_at": out.ExpiresAt,
	})
	return nil
}

// PinContent streams one rendered pin from storage.
func (h *Handler) PinContent(w http.ResponseWriter, r *http.Request) error {
	pin, _, err := h.renderedPin(r)
	if err != nil {
		return err
	}

	rc, ct, size, err := h.storage.GetObject(r.Context(), pin.ObjectKey)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeNotFound, "api.pin.content", "pin file missing")
	}
	defer rc.Close()

	if ct == "" {
		ct = "image/png"
	}
	w.Header().Set("Content-Type", ct)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	_, _ = io.Copy(w, rc)
	return nil
}

// renderedPin resolves the {campaignId}/{rowIndex} pair to a pin that has
// a stored file. Failed rows have a record but nothing to serve.
func (h *Handler) renderedPin(r *http.Request) (*models.Pin, int, error) {
	campaignID := chi.URLParam(r, "campaignId")
	rowIndex, err := strconv.Atoi(chi.URLParam(r, "rowIndex"))
	if err != nil || rowIndex < 0 {
		return nil, 0, errors.Validation("rowIndex must be a non-negative integer").WithField("field", "rowIndex")
	}

	pin, err := h.store.GetPin(r.Context(), campaignID, rowIndex)
	if err != nil {
		return nil, 0, err
	}
	if pin.Status != models.PinStatusDone || pin.ObjectKey == "" {
		return nil, 0, errors.Newf(errors.CodeFailedPrecond, "row %d has no rendered file", rowIndex).
			WithField("status", pin.Status)
	}
	return pin, rowIndex, nil
}
