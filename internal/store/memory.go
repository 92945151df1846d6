package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/manuchak/detecta-core/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]models.Incident
	zones     []models.Zone
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		incidents: make(map[string]models.Incident),
	}
}

// UpsertIncidents stores incidents in memory, keeping the original CreatedAt
func (s *InMemoryStore) UpsertIncidents(ctx context.Context, incidents []models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, inc := range incidents {
		if existing, ok := s.incidents[inc.ID]; ok {
			inc.CreatedAt = existing.CreatedAt
		} else if inc.CreatedAt.IsZero() {
			inc.CreatedAt = now
		}
		inc.UpdatedAt = now
		s.incidents[inc.ID] = inc
	}

	return nil
}

// QueryIncidents returns matching incidents, newest publication first
func (s *InMemoryStore) QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Incident{}
	for _, inc := range s.incidents {
		if q.Matches(inc) {
			result = append(result, inc)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PublishedAt.Equal(result[j].PublishedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].PublishedAt.After(result[j].PublishedAt)
	})

	if q.Offset >= len(result) {
		return []models.Incident{}, nil
	}
	if q.Offset > 0 {
		result = result[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}

	return result, nil
}

// GetIncident retrieves a single incident by ID; a miss returns nil, nil
func (s *InMemoryStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inc, exists := s.incidents[id]; exists {
		return &inc, nil
	}

	return nil, nil
}

// SetZones replaces the active service zones
func (s *InMemoryStore) SetZones(zones []models.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = append([]models.Zone(nil), zones...)
}

// ActiveZones returns a copy of the configured zones
func (s *InMemoryStore) ActiveZones(ctx context.Context) ([]models.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Zone(nil), s.zones...), nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
