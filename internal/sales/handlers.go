package sales

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/common"
)

// CheckoutRequest is the payload for POST /api/v1/checkout. Items come
// from the referenced cart, not the request body.
type CheckoutRequest struct {
	CartID            string `json:"cartId" validate:"required"`
	ReplacesID        string `json:"replacesId"`
	Status            string `json:"status" validate:"omitempty,oneof=Pending Completed"`
	CustomerName      string `json:"customerName"`
	CustomerPhone     string `json:"customerPhone"`
	CustomerAddress   string `json:"customerAddress"`
	Logistics         string `json:"logistics"`
	DestinationBranch string `json:"destinationBranch"`
	PaymentMethod     string `json:"paymentMethod"`
	PaymentStatus     string `json:"paymentStatus"`
}

// Handler exposes checkout and sale lifecycle endpoints.
type Handler struct {
	service  *Service
	carts    *cart.Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Carts    *cart.Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, carts: cfg.Carts, validate: cfg.Validate}
}

// Checkout handles POST /api/v1/checkout. On success the source cart is
// cleared so the terminal starts fresh.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || h.carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	var payload CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.validate != nil {
		if err := h.validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid checkout request", map[string]any{"error": err.Error()})
			return
		}
	}
	c, err := h.carts.Get(r.Context(), payload.CartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rec, err := h.service.Commit(r.Context(), CommitInput{
		Items:        c.Items,
		BillDiscount: c.BillDiscount,
		Status:       Status(payload.Status),
		ReplacesID:   payload.ReplacesID,
		Meta: Meta{
			CustomerName:      payload.CustomerName,
			CustomerPhone:     payload.CustomerPhone,
			CustomerAddress:   payload.CustomerAddress,
			Logistics:         payload.Logistics,
			DestinationBranch: payload.DestinationBranch,
			PaymentMethod:     payload.PaymentMethod,
			PaymentStatus:     payload.PaymentStatus,
		},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.carts.Clear(r.Context(), payload.CartID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

// List handles GET /api/v1/sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	recs, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	start := (page - 1) * perPage
	if start > len(recs) {
		start = len(recs)
	}
	end := start + perPage
	if end > len(recs) {
		end = len(recs)
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       recs[start:end],
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(recs)},
	})
}

// Get handles GET /api/v1/sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Approve handles POST /api/v1/sales/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	rec, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Cancel handles POST /api/v1/sales/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	if err := h.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cancelled": true}})
}

// UpdateDetails handles PATCH /api/v1/sales/{id}, metadata only.
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sales service not configured", nil)
		return
	}
	var meta Meta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	rec, err := h.service.UpdateDetails(r.Context(), chi.URLParam(r, "id"), meta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ise *InsufficientStockError
	switch {
	case errors.As(err, &ise):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", ise.Error(), map[string]any{
			"productId": ise.ProductID,
			"requested": ise.Requested,
			"available": ise.Available,
			"shortfall": ise.Shortfall(),
		})
	case errors.Is(err, ErrNotFound), errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
