package quote

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/landed-cost/internal/common"
	"github.com/noah-isme/landed-cost/internal/pricing"
)

// Handler exposes the quote endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Create handles POST /api/v1/quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var raw RawInput
	if !common.DecodeJSON(w, r, &raw) {
		return
	}
	result, err := h.service.Quote(r.Context(), raw)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

// Rate handles GET /api/v1/rates/{currency}.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	rate, err := h.service.Rate(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rate)
}

// Jurisdiction handles GET /api/v1/jurisdiction.
func (h *Handler) Jurisdiction(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	j := h.service.jurisdiction()
	common.Data(w, http.StatusOK, struct {
		LocalCurrency string `json:"local_currency"`
		pricing.Jurisdiction
	}{h.service.localCurrency(), j})
}
