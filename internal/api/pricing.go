package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/manuchak/detecta-core/internal/billing"
	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/metrics"
	"github.com/manuchak/detecta-core/internal/pricing"
)

func (h *Handler) calculator(r *http.Request) (*pricing.Calculator, error) {
	calc, err := h.deps.Pricing.Calculator(r.Context())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrServiceUnavailable, err)
	}
	return calc, nil
}

func parseKm(s string) (float64, error) {
	if s == "" {
		return 0, invalid("km", "is required")
	}
	km, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(km) || math.IsInf(km, 0) {
		return 0, invalid("km", "must be a number")
	}
	return km, nil
}

// bandsHandler handles GET /v1/pricing/bands
func (h *Handler) bandsHandler(w http.ResponseWriter, r *http.Request) {
	calc, err := h.calculator(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"bands":    calc.Bands(),
		"fallback": calc.UsingFallback(),
		"max_km":   calc.MaxKm(),
	})
}

// quoteHandler handles GET /v1/pricing/quote?km=. Both models are returned;
// the caller decides which one applies.
func (h *Handler) quoteHandler(w http.ResponseWriter, r *http.Request) {
	km, err := parseKm(r.URL.Query().Get("km"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	calc, err := h.calculator(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cmp := calc.Compare(km)
	metrics.RecordQuote(string(pricing.ModelSingleTier))
	metrics.RecordQuote(string(pricing.ModelStaircase))

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"quote":    cmp,
		"fallback": calc.UsingFallback(),
	})
}

type invoiceRequest struct {
	CustomerID string  `json:"customer_id"`
	Km         float64 `json:"km"`
	Model      string  `json:"model"`
}

// invoiceHandler handles POST /v1/pricing/invoice. The pricing model must be
// named explicitly.
func (h *Handler) invoiceHandler(w http.ResponseWriter, r *http.Request) {
	if h.deps.Invoicer == nil {
		h.writeError(w, r, fmt.Errorf("billing: %w", apperrors.ErrNotConfigured))
		return
	}

	var req invoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	model, err := pricing.ParseModel(req.Model)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if math.IsNaN(req.Km) || req.Km <= 0 {
		h.writeError(w, r, invalid("km", "must be positive"))
		return
	}

	calc, err := h.calculator(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := calc.Price(model, req.Km)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.RecordQuote(string(model))

	inv, err := h.deps.Invoicer.CreateInvoiceItem(r.Context(), billing.InvoiceRequest{
		CustomerID: req.CustomerID,
		Model:      model,
		Km:         math.Min(req.Km, calc.MaxKm()),
		Amount:     amount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, inv)
}
