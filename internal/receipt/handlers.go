package receipt

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/sales"
)

// Handler renders receipts over HTTP.
type Handler struct {
	Sales    *sales.Service
	Renderer *Renderer
}

// Render handles GET /api/v1/sales/{id}/receipt.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	if h.Sales == nil || h.Renderer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "receipt service not configured", nil)
		return
	}
	rec, err := h.Sales.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sales.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "sale not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	html, err := h.Renderer.Render(rec)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "render receipt", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}
