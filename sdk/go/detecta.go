// Package sdk is a small client for the detecta HTTP API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/manuchak/detecta-core/internal/billing"
	"github.com/manuchak/detecta-core/internal/location"
	"github.com/manuchak/detecta-core/internal/pricing"
	"github.com/manuchak/detecta-core/internal/threat"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("detecta: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("detecta: %d %s", e.StatusCode, e.Code)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IncidentFilter maps to the /v1/incidents query parameters. Zero values are
// omitted.
type IncidentFilter struct {
	Limit      int
	Offset     int
	Since      time.Time
	Until      time.Time
	Severities []string
	Sources    []string
	States     []string
	MinScore   int
}

func (f IncidentFilter) values() url.Values {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if !f.Since.IsZero() {
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if !f.Until.IsZero() {
		q.Set("until", f.Until.UTC().Format(time.RFC3339))
	}
	for _, s := range f.Severities {
		q.Add("severity", s)
	}
	for _, s := range f.Sources {
		q.Add("source", s)
	}
	for _, s := range f.States {
		q.Add("state", s)
	}
	if f.MinScore > 0 {
		q.Set("min_score", strconv.Itoa(f.MinScore))
	}
	return q
}

// Incidents lists scored incidents, most relevant first
func (c *Client) Incidents(ctx context.Context, f IncidentFilter) ([]threat.ScoredIncident, error) {
	var out struct {
		Data []threat.ScoredIncident `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/incidents", f.values(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Incident(ctx context.Context, id string) (*threat.ScoredIncident, error) {
	var out threat.ScoredIncident
	if err := c.do(ctx, http.MethodGet, "/v1/incidents/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Normalized is the result of /v1/locations/normalize
type Normalized struct {
	Normalized    string             `json:"normalized"`
	Parsed        *location.Location `json:"parsed,omitempty"`
	DetectedState string             `json:"detected_state,omitempty"`
	FormatError   string             `json:"format_error,omitempty"`
}

func (c *Client) Normalize(ctx context.Context, text string) (*Normalized, error) {
	var out Normalized
	if err := c.do(ctx, http.MethodPost, "/v1/locations/normalize", nil, map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Match returns the candidates similar to input. A negative threshold uses the
// server default.
func (c *Client) Match(ctx context.Context, input string, candidates []string, threshold float64) ([]location.Match, error) {
	body := map[string]any{"input": input, "candidates": candidates}
	if threshold >= 0 {
		body["threshold"] = threshold
	}
	var out struct {
		Matches []location.Match `json:"matches"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/locations/match", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// Bands is the active rate table
type Bands struct {
	Bands    []pricing.RateBand `json:"bands"`
	Fallback bool               `json:"fallback"`
	MaxKm    float64            `json:"max_km"`
}

func (c *Client) Bands(ctx context.Context) (*Bands, error) {
	var out Bands
	if err := c.do(ctx, http.MethodGet, "/v1/pricing/bands", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quote prices km under both models
func (c *Client) Quote(ctx context.Context, km float64) (*pricing.Comparison, error) {
	q := url.Values{"km": {strconv.FormatFloat(km, 'f', -1, 64)}}
	var out struct {
		Quote pricing.Comparison `json:"quote"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/pricing/quote", q, nil, &out); err != nil {
		return nil, err
	}
	return &out.Quote, nil
}

func (c *Client) CreateInvoice(ctx context.Context, customerID string, model pricing.Model, km float64) (*billing.Invoice, error) {
	body := map[string]any{"customer_id": customerID, "model": string(model), "km": km}
	var out billing.Invoice
	if err := c.do(ctx, http.MethodPost, "/v1/pricing/invoice", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
