package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/models"
	"github.com/manuchak/detecta-core/internal/threat"
)

const maxLimit = 1000

// getIncidentsHandler handles GET /v1/incidents. Relevance is computed per
// request against the currently active services.
func (h *Handler) getIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	q, minScore, err := parseIncidentQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	incidents, err := h.deps.Incidents.Query(r.Context(), q, minScore)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":      incidents,
		"count":     len(incidents),
		"timestamp": time.Now().UTC(),
	})
}

// getIncidentHandler handles GET /v1/incidents/{id}
func (h *Handler) getIncidentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inc, err := h.deps.Incidents.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.writeJSONResponse(w, http.StatusOK, inc)
}

func invalid(field, format string, args ...any) error {
	return apperrors.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// parseIncidentQuery parses query parameters into an IncidentQuery and the
// minimum relevance score
func parseIncidentQuery(r *http.Request) (models.IncidentQuery, int, error) {
	var q models.IncidentQuery
	values := r.URL.Query()

	if s := values.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return q, 0, invalid("limit", "invalid limit: %s", s)
		}
		if limit < 0 || limit > maxLimit {
			return q, 0, invalid("limit", "must be between 0 and %d", maxLimit)
		}
		q.Limit = limit
	}

	if s := values.Get("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil {
			return q, 0, invalid("offset", "invalid offset: %s", s)
		}
		if offset < 0 {
			return q, 0, invalid("offset", "must be non-negative")
		}
		q.Offset = offset
	}

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &q.Since}, {"until", &q.Until}} {
		if s := values.Get(p.name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return q, 0, invalid(p.name, "invalid %s format: %s", p.name, s)
			}
			*p.dst = t
		}
	}

	for _, s := range values["severity"] {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			return q, 0, invalid("severity", "unknown severity: %s", s)
		}
		q.Severities = append(q.Severities, sev)
	}
	q.Sources = values["source"]
	q.States = values["state"]

	minScore := threat.MinScore
	if s := values.Get("min_score"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < threat.MinScore || n > threat.MaxScore {
			return q, 0, invalid("min_score", "must be an integer between %d and %d", threat.MinScore, threat.MaxScore)
		}
		minScore = n
	}

	return q, minScore, nil
}
