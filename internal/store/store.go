package store

import (
	"context"

	"github.com/manuchak/detecta-core/internal/models"
)

// Store persists incidents and exposes the active service zones used for
// proximity scoring.
type Store interface {
	UpsertIncidents(ctx context.Context, incidents []models.Incident) error
	QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error)
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	ActiveZones(ctx context.Context) ([]models.Zone, error)
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db != nil && db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
