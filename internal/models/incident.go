package models

import (
	"strings"
	"time"

	"github.com/manuchak/detecta-core/internal/geo"
)

// Severity is the incident severity as stored by the classification step
type Severity string

const (
	SeverityLow      Severity = "baja"
	SeverityMedium   Severity = "media"
	SeverityHigh     Severity = "alta"
	SeverityCritical Severity = "critica"
)

// ParseSeverity accepts the stored values plus common spellings
// ("crítica", "ALTA", "high"). Unknown values report ok=false.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critica", "crítica", "critical":
		return SeverityCritical, true
	case "alta", "high":
		return SeverityHigh, true
	case "media", "medium":
		return SeverityMedium, true
	case "baja", "low":
		return SeverityLow, true
	default:
		return "", false
	}
}

// Rank orders severities; higher is worse. Unknown severities rank below baja.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 0
	default:
		return -1
	}
}

// Incident is a security incident gathered by the threat-intelligence pipeline
type Incident struct {
	ID                       string    `json:"id" db:"id"`
	Source                   string    `json:"fuente" db:"source"`
	Title                    string    `json:"titulo" db:"title"`
	Summary                  string    `json:"resumen" db:"summary"`
	URL                      string    `json:"url" db:"url"`
	PublishedAt              time.Time `json:"fecha_publicacion" db:"published_at"`
	DetectedAt               time.Time `json:"detectado_en" db:"detected_at"`
	Location                 string    `json:"ubicacion" db:"location"`
	State                    string    `json:"estado" db:"state"`
	Latitude                 *float64  `json:"latitud" db:"latitude"`
	Longitude                *float64  `json:"longitud" db:"longitude"`
	IncidentType             string    `json:"tipo_incidente" db:"incident_type"`
	Severity                 Severity  `json:"severidad" db:"severity"`
	ClassificationConfidence float64   `json:"confianza_clasificacion" db:"classification_confidence"`
	ArmsMentioned            bool      `json:"armas_mencionadas" db:"arms_mentioned"`
	Victims                  int       `json:"num_victimas" db:"victims"`
	Raw                      string    `json:"-" db:"raw"`
	CreatedAt                time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time `json:"updated_at" db:"updated_at"`
}

// Coordinates returns the incident position when both components are present
// and valid.
func (i Incident) Coordinates() (geo.Point, bool) {
	if i.Latitude == nil || i.Longitude == nil {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: *i.Latitude, Lng: *i.Longitude}
	return p, p.Valid()
}

// SetCoordinates stores p on the incident
func (i *Incident) SetCoordinates(p geo.Point) {
	lat, lng := p.Lat, p.Lng
	i.Latitude = &lat
	i.Longitude = &lng
}

// IncidentQuery represents query parameters for filtering incidents
type IncidentQuery struct {
	IDs        []string   `json:"ids"`
	Sources    []string   `json:"sources"`
	Severities []Severity `json:"severities"`
	States     []string   `json:"states"`
	Since      time.Time  `json:"since"`
	Until      time.Time  `json:"until"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

// Matches checks if an incident matches the query criteria
func (q IncidentQuery) Matches(inc Incident) bool {
	if len(q.IDs) > 0 && !contains(q.IDs, inc.ID) {
		return false
	}
	if len(q.Sources) > 0 && !contains(q.Sources, inc.Source) {
		return false
	}
	if len(q.Severities) > 0 && !contains(q.Severities, inc.Severity) {
		return false
	}
	if len(q.States) > 0 && !contains(q.States, inc.State) {
		return false
	}
	if !q.Since.IsZero() && inc.PublishedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && inc.PublishedAt.After(q.Until) {
		return false
	}
	return true
}

func contains[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Zone is an active custody service whose route incidents are measured against
type Zone struct {
	ServiceID   string     `json:"servicio_id"`
	Origin      *geo.Point `json:"origen,omitempty"`
	Destination *geo.Point `json:"destino,omitempty"`
}

// Points returns the zone's valid origin and destination coordinates
func (z Zone) Points() []geo.Point {
	points := make([]geo.Point, 0, 2)
	if z.Origin != nil && z.Origin.Valid() {
		points = append(points, *z.Origin)
	}
	if z.Destination != nil && z.Destination.Valid() {
		points = append(points, *z.Destination)
	}
	return points
}
