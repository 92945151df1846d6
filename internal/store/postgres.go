package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/geo"
	"github.com/manuchak/detecta-core/internal/models"
)

const incidentColumns = `id, source, title, summary, url, published_at, detected_at,
	location, state, latitude, longitude, incident_type, severity,
	classification_confidence, arms_mentioned, victims, raw, created_at, updated_at`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertIncidents inserts or updates incidents in the database
func (s *PostgresStore) UpsertIncidents(ctx context.Context, incidents []models.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	query := `
		INSERT INTO incidents (
			id, source, title, summary, url, published_at, detected_at,
			location, state, latitude, longitude, incident_type, severity,
			classification_confidence, arms_mentioned, victims, raw
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			url = EXCLUDED.url,
			published_at = EXCLUDED.published_at,
			detected_at = EXCLUDED.detected_at,
			location = EXCLUDED.location,
			state = EXCLUDED.state,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			incident_type = EXCLUDED.incident_type,
			severity = EXCLUDED.severity,
			classification_confidence = EXCLUDED.classification_confidence,
			arms_mentioned = EXCLUDED.arms_mentioned,
			victims = EXCLUDED.victims,
			raw = EXCLUDED.raw,
			updated_at = NOW()
	`

	for _, inc := range incidents {
		err := s.db.Exec(ctx, query,
			inc.ID, inc.Source, inc.Title, inc.Summary, inc.URL,
			inc.PublishedAt, inc.DetectedAt, inc.Location, inc.State,
			inc.Latitude, inc.Longitude, inc.IncidentType, string(inc.Severity),
			inc.ClassificationConfidence, inc.ArmsMentioned, inc.Victims, inc.Raw,
		)
		if err != nil {
			return apperrors.DatabaseError{Operation: "upsert incident " + inc.ID, Err: err}
		}
	}

	return nil
}

// buildIncidentQuery renders q as SQL plus positional args
func buildIncidentQuery(q models.IncidentQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + incidentColumns + " FROM incidents WHERE 1=1")

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.IDs) > 0 {
		sb.WriteString(" AND id = ANY(" + arg(q.IDs) + ")")
	}
	if len(q.Sources) > 0 {
		sb.WriteString(" AND source = ANY(" + arg(q.Sources) + ")")
	}
	if len(q.Severities) > 0 {
		sev := make([]string, len(q.Severities))
		for i, s := range q.Severities {
			sev[i] = string(s)
		}
		sb.WriteString(" AND severity = ANY(" + arg(sev) + ")")
	}
	if len(q.States) > 0 {
		sb.WriteString(" AND state = ANY(" + arg(q.States) + ")")
	}
	if !q.Since.IsZero() {
		sb.WriteString(" AND published_at >= " + arg(q.Since))
	}
	if !q.Until.IsZero() {
		sb.WriteString(" AND published_at <= " + arg(q.Until))
	}

	sb.WriteString(" ORDER BY published_at DESC, id ASC")

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(q.Offset))
	}

	return sb.String(), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIncident(row scanner) (models.Incident, error) {
	var inc models.Incident
	var severity string
	err := row.Scan(
		&inc.ID, &inc.Source, &inc.Title, &inc.Summary, &inc.URL,
		&inc.PublishedAt, &inc.DetectedAt, &inc.Location, &inc.State,
		&inc.Latitude, &inc.Longitude, &inc.IncidentType, &severity,
		&inc.ClassificationConfidence, &inc.ArmsMentioned, &inc.Victims, &inc.Raw,
		&inc.CreatedAt, &inc.UpdatedAt,
	)
	inc.Severity = models.Severity(severity)
	return inc, err
}

// QueryIncidents retrieves incidents based on query parameters
func (s *PostgresStore) QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error) {
	query, args := buildIncidentQuery(q)

	rowsInterface, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.DatabaseError{Operation: "query incidents", Err: err}
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	incidents := []models.Incident{}
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	return incidents, nil
}

// GetIncident retrieves a single incident by ID; a miss returns nil, nil
func (s *PostgresStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	rowInterface := s.db.QueryRow(ctx, "SELECT "+incidentColumns+" FROM incidents WHERE id = $1", id)
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return nil, fmt.Errorf("invalid row type")
	}

	inc, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	return &inc, nil
}

// ActiveZones loads origin and destination coordinates of custody services
// that are scheduled or in progress.
func (s *PostgresStore) ActiveZones(ctx context.Context) ([]models.Zone, error) {
	rowsInterface, err := s.db.Query(ctx, `
		SELECT id, origin_lat, origin_lng, destination_lat, destination_lng
		FROM active_services
		WHERE status IN ('scheduled', 'in_progress')
	`)
	if err != nil {
		return nil, apperrors.DatabaseError{Operation: "query active zones", Err: err}
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var (
			z                models.Zone
			oLat, oLng       *float64
			destLat, destLng *float64
		)
		if err := rows.Scan(&z.ServiceID, &oLat, &oLng, &destLat, &destLng); err != nil {
			return nil, fmt.Errorf("scan active zone: %w", err)
		}
		z.Origin = pointOf(oLat, oLng)
		z.Destination = pointOf(destLat, destLng)
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active zones: %w", err)
	}

	return zones, nil
}

func pointOf(lat, lng *float64) *geo.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &geo.Point{Lat: *lat, Lng: *lng}
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
