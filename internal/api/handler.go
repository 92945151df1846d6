package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/manuchak/detecta-core/internal/billing"
	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/models"
	"github.com/manuchak/detecta-core/internal/pricing"
	"github.com/manuchak/detecta-core/internal/threat"
	"github.com/manuchak/detecta-core/internal/uploadqueue"
)

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// IncidentService returns incidents scored for relevance
type IncidentService interface {
	Query(ctx context.Context, q models.IncidentQuery, minScore int) ([]threat.ScoredIncident, error)
	Get(ctx context.Context, id string) (*threat.ScoredIncident, error)
}

// CalculatorProvider builds a calculator from the current rate bands
type CalculatorProvider interface {
	Calculator(ctx context.Context) (*pricing.Calculator, error)
}

// Invoicer bills a priced service
type Invoicer interface {
	CreateInvoiceItem(ctx context.Context, req billing.InvoiceRequest) (*billing.Invoice, error)
}

// Deps are the collaborators behind the API. Invoicer and Uploads may be nil.
type Deps struct {
	Store     HealthChecker
	Incidents IncidentService
	Pricing   CalculatorProvider
	Invoicer  Invoicer
	Uploads   *uploadqueue.Queue
}

// Handler handles HTTP requests for the API
type Handler struct {
	deps      Deps
	version   string
	buildTime string
	gitCommit string
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		deps:      deps,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		r.Get("/incidents", h.getIncidentsHandler)
		r.Get("/incidents/{id}", h.getIncidentHandler)

		r.Post("/locations/normalize", h.normalizeLocationHandler)
		r.Post("/locations/match", h.matchLocationHandler)

		r.Get("/pricing/bands", h.bandsHandler)
		r.Get("/pricing/quote", h.quoteHandler)
		r.Post("/pricing/invoice", h.invoiceHandler)

		r.Get("/version", h.versionHandler)
	})

	r.Get("/health", h.healthHandler)
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	})
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{"store": "ok"}
	statusCode := http.StatusOK

	if h.deps.Store != nil {
		if err := h.deps.Store.Health(ctx); err != nil {
			checks["store"] = "error: " + err.Error()
			statusCode = http.StatusServiceUnavailable
		}
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}
	if statusCode != http.StatusOK {
		response["status"] = "not_ready"
	}
	if h.deps.Uploads != nil {
		response["uploads"] = h.deps.Uploads.Stats()
	}

	h.writeJSONResponse(w, statusCode, response)
}

func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	})
}

func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeError maps application errors to HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		h.writeErrorResponse(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrNotConfigured), errors.Is(err, apperrors.ErrServiceUnavailable):
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		logger.WithContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
