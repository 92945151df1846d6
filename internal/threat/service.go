package threat

import (
	"context"
	"fmt"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/metrics"
	"github.com/manuchak/detecta-core/internal/models"
)

// Repository is the part of store.Store the service reads from
type Repository interface {
	QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error)
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	ActiveZones(ctx context.Context) ([]models.Zone, error)
}

// Service scores stored incidents on demand. Scores are never persisted;
// each call uses the zones active at that moment.
type Service struct {
	repo   Repository
	scorer *Scorer
}

// NewService creates a service; a nil scorer uses the wall clock
func NewService(repo Repository, scorer *Scorer) *Service {
	if scorer == nil {
		scorer = NewScorer()
	}
	return &Service{repo: repo, scorer: scorer}
}

// zones loads active zones. A failure only disables proximity scoring.
func (s *Service) zones(ctx context.Context) []models.Zone {
	zones, err := s.repo.ActiveZones(ctx)
	if err != nil {
		logger.WithContext(ctx).Warn("Active zones unavailable; scoring without proximity", "error", err)
		return nil
	}
	return zones
}

// MaxCandidates bounds how many of the most recently published matches are
// loaded and ranked for one query
const MaxCandidates = 5000

// Query returns matching incidents ranked by relevance, dropping those scored
// below minScore. q.Offset and q.Limit page the ranked, filtered list; the
// ranking covers the MaxCandidates most recent matches.
func (s *Service) Query(ctx context.Context, q models.IncidentQuery, minScore int) ([]ScoredIncident, error) {
	offset, limit := q.Offset, q.Limit
	q.Offset, q.Limit = 0, MaxCandidates

	incidents, err := s.repo.QueryIncidents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}

	ranked := s.scorer.Rank(incidents, s.zones(ctx))
	out := make([]ScoredIncident, 0, len(ranked))
	for _, si := range ranked {
		metrics.RecordRelevanceScored(si.Relevance.Score)
		if si.Relevance.Score >= minScore {
			out = append(out, si)
		}
	}
	return page(out, offset, limit), nil
}

func page(items []ScoredIncident, offset, limit int) []ScoredIncident {
	if offset >= len(items) {
		return []ScoredIncident{}
	}
	items = items[max(offset, 0):]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Get scores a single incident
func (s *Service) Get(ctx context.Context, id string) (*ScoredIncident, error) {
	inc, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident %s: %w", id, err)
	}
	if inc == nil {
		return nil, fmt.Errorf("incident %s: %w", id, apperrors.ErrNotFound)
	}

	rel := s.scorer.Score(*inc, s.zones(ctx))
	metrics.RecordRelevanceScored(rel.Score)
	return &ScoredIncident{Incident: *inc, Relevance: rel}, nil
}
