package handlers

import (
	"net/http"
	"strconv"

	"pinforge/internal/httpkit"
	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
)

// PreviewRequest renders one row against either an inline template document
// or a stored template. Row and mapping are optional: absent fields
// substitute to empty strings, same as a batch run would.
type PreviewRequest struct {
	TemplateID string            `json:"templateId,omitempty"`
	Template   *models.Template  `json:"template,omitempty"`
	Row        models.Row        `json:"row,omitempty"`
	Mapping    map[string]string `json:"mapping,omitempty"`
}

// Preview renders a single PNG in-process and returns the raw bytes. This
// is the same code path batch generation uses, so a preview is a faithful
// sample of campaign output.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) error {
	var req PreviewRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "api.preview", "invalid json body")
	}

	tpl := req.Template
	if tpl == nil {
		if req.TemplateID == "" {
			return errors.Validation("template or templateId is required")
		}
		stored, err := h.store.GetTemplate(r.Context(), req.TemplateID)
		if err != nil {
			return err
		}
		tpl = stored
	}

	png, err := h.renderer.RenderRow(r.Context(), tpl, req.Row, req.Mapping)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
	return nil
}
