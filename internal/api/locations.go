package api

import (
	"math"
	"net/http"
	"strings"

	"github.com/manuchak/detecta-core/internal/location"
)

type normalizeRequest struct {
	Text string `json:"text"`
}

type normalizeResponse struct {
	Normalized    string             `json:"normalized"`
	Parsed        *location.Location `json:"parsed,omitempty"`
	DetectedState string             `json:"detected_state,omitempty"`
	FormatError   string             `json:"format_error,omitempty"`
}

// normalizeLocationHandler handles POST /v1/locations/normalize
func (h *Handler) normalizeLocationHandler(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := normalizeResponse{Normalized: location.NormalizeText(req.Text)}
	if loc, ok := location.ParseLocation(req.Text); ok {
		resp.Parsed = &loc
	}
	city := req.Text
	if resp.Parsed != nil {
		city = resp.Parsed.City
	}
	if state, ok := location.AutoDetectState(city); ok {
		resp.DetectedState = state
	}
	if err := location.ValidateFormat(req.Text); err != nil {
		resp.FormatError = err.Error()
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

type matchRequest struct {
	Input      string   `json:"input"`
	Candidates []string `json:"candidates"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

// matchLocationHandler handles POST /v1/locations/match
func (h *Handler) matchLocationHandler(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		h.writeError(w, r, invalid("input", "is required"))
		return
	}

	threshold := location.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
		if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
			h.writeError(w, r, invalid("threshold", "must be between 0 and 1"))
			return
		}
	}

	matches := location.FindSimilar(req.Input, req.Candidates, threshold)
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"input":     req.Input,
		"threshold": threshold,
		"matches":   matches,
		"count":     len(matches),
	})
}
