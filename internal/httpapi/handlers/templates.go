package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pinforge/internal/httpapi/util"
	"pinforge/internal/httpkit"
	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
)

// templateSummary is the list-view shape: no element definitions.
type templateSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTemplate stores an authored template document as-is. The canvas
// size and every element are validated before anything is written.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) error {
	var tpl models.Template
	if err := httpkit.DecodeJSON(r, &tpl); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "api.template.create", "invalid json body")
	}

	if tpl.ID == "" {
		tpl.ID = util.NewID("tpl")
	}
	tpl.Name = strings.TrimSpace(tpl.Name)

	if err := h.store.CreateTemplate(r.Context(), &tpl); err != nil {
		return err
	}

	h.log.FromContext(r.Context()).Info("template created",
		"template_id", tpl.ID,
		"elements", len(tpl.Elements),
	)

	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"template": &tpl})
	return nil
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) error {
	templates, err := h.store.ListTemplates(r.Context())
	if err != nil {
		return err
	}

	out := make([]templateSummary, 0, len(templates))
	for _, t := range templates {
		out = append(out, templateSummary{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt})
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"templates": out})
	return nil
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) error {
	templateID := chi.URLParam(r, "templateId")

	tpl, err := h.store.GetTemplate(r.Context(), templateID)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"template": tpl})
	return nil
}

// DeleteTemplate soft-deletes; campaigns already referencing the template
// keep rendering with it.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) error {
	templateID := chi.URLParam(r, "templateId")

	if err := h.store.DeleteTemplate(r.Context(), templateID); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
