package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/pricing"
)

func TestHandler_Bands(t *testing.T) {
	r := newRouter(t, Deps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/pricing/bands", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Bands    []pricing.RateBand `json:"bands"`
		Fallback bool               `json:"fallback"`
		MaxKm    float64            `json:"max_km"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Bands) != 4 || !resp.Fallback || resp.MaxKm != 700 {
		t.Errorf("unexpected bands response %+v", resp)
	}
	if resp.Bands[3].KmMax != nil {
		t.Errorf("Expected last band to be open-ended")
	}
}

func TestHandler_Quote(t *testing.T) {
	r := newRouter(t, Deps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/pricing/quote?km=250", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Quote pricing.Comparison `json:"quote"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Quote.SingleTier.Cost != 1375 || resp.Quote.Staircase != 1425 {
		t.Errorf("Expected 1375 single-tier and 1425 staircase, got %+v", resp.Quote)
	}
	if len(resp.Quote.Segments) != 2 {
		t.Errorf("Expected two staircase segments, got %d", len(resp.Quote.Segments))
	}

	for _, q := range []string{"", "?km=", "?km=abc", "?km=NaN"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/pricing/quote"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", q, w.Code)
		}
	}
}

func TestHandler_Quote_BandsUnavailable(t *testing.T) {
	r := newRouter(t, Deps{Pricing: failingProvider{}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/pricing/quote?km=10", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestHandler_Invoice_NotConfigured(t *testing.T) {
	r := newRouter(t, Deps{})

	w := post(t, r, "/v1/pricing/invoice", `{"customer_id":"cus_1","km":250,"model":"staircase"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without billing, got %d", w.Code)
	}
}

func TestHandler_Invoice(t *testing.T) {
	inv := &fakeInvoicer{}
	r := newRouter(t, Deps{Invoicer: inv})
	clampedCost := pricing.NewCalculator(nil, pricing.DefaultMaxKm).CostPerKm(700).Cost

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantAmount float64
		wantKm     float64
	}{
		{"staircase", `{"customer_id":"cus_1","km":250,"model":"staircase"}`, http.StatusCreated, 1425, 250},
		{"single tier", `{"customer_id":"cus_1","km":250,"model":"single_tier"}`, http.StatusCreated, 1375, 250},
		{"clamped distance", `{"customer_id":"cus_1","km":900,"model":"single_tier"}`, http.StatusCreated, clampedCost, 700},
		{"missing model", `{"customer_id":"cus_1","km":250}`, http.StatusBadRequest, 0, 0},
		{"unknown model", `{"customer_id":"cus_1","km":250,"model":"flat"}`, http.StatusBadRequest, 0, 0},
		{"zero km", `{"customer_id":"cus_1","km":0,"model":"staircase"}`, http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, r, "/v1/pricing/invoice", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}
			if inv.got.Amount != tt.wantAmount || inv.got.Km != tt.wantKm {
				t.Errorf("Expected amount %v for %v km, got %+v", tt.wantAmount, tt.wantKm, inv.got)
			}
			body := decode(t, w)
			if body["id"] != "ii_test" {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestHandler_Invoice_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperrors.ValidationError{Field: "customer_id", Message: "is required"}, http.StatusBadRequest},
		{"upstream", errors.New("stripe down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, Deps{Invoicer: &fakeInvoicer{err: tt.err}})
			w := post(t, r, "/v1/pricing/invoice", `{"customer_id":"","km":10,"model":"staircase"}`)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}
