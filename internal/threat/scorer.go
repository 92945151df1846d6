// Package threat scores how relevant a security incident is to the custody
// services currently on the road.
//
// The score is additive: severity, recency, classification confidence, arms,
// victims and proximity each contribute a fixed number of points, and the sum
// is clamped to [0, 100]. Every contribution appends a human-readable factor
// so operators can see why an incident ranks where it does.
package threat

import (
	"fmt"
	"sort"
	"time"

	"github.com/manuchak/detecta-core/internal/geo"
	"github.com/manuchak/detecta-core/internal/models"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Relevance is the computed score of one incident
type Relevance struct {
	Score   int      `json:"score"`
	Factors []string `json:"factores"`
}

// ScoredIncident pairs an incident with its relevance
type ScoredIncident struct {
	models.Incident
	Relevance Relevance `json:"relevancia"`
}

type band struct {
	limit  float64
	points int
}

var (
	severityPoints = map[models.Severity]int{
		models.SeverityCritical: 30,
		models.SeverityHigh:     20,
		models.SeverityMedium:   10,
	}

	// hours since publication
	recencyBands = []band{{24, 25}, {72, 15}, {168, 5}}

	confidenceBands = []band{{0.8, 10}, {0.6, 5}}

	// km to the nearest active zone point
	proximityBands = []band{{20, 25}, {50, 15}, {100, 5}}
)

const (
	armsPoints    = 10
	victimsPoints = 10
)

// Scorer computes relevance. The zero value is not usable; call NewScorer.
type Scorer struct {
	now func() time.Time
}

// Option configures a Scorer
type Option func(*Scorer)

// WithClock replaces time.Now for recency calculations
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer creates a scorer using the wall clock unless overridden
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the relevance of inc against the active zones. Missing data
// (unknown severity, zero publish time, absent coordinates) contributes nothing.
func (s *Scorer) Score(inc models.Incident, zones []models.Zone) Relevance {
	score := 0
	factors := []string{}

	if pts, ok := severityPoints[inc.Severity]; ok {
		score += pts
		factors = append(factors, fmt.Sprintf("Severidad %s", inc.Severity))
	}

	if !inc.PublishedAt.IsZero() {
		hours := s.now().Sub(inc.PublishedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		for _, b := range recencyBands {
			if hours <= b.limit {
				score += b.points
				factors = append(factors, fmt.Sprintf("Publicado hace menos de %.0fh", b.limit))
				break
			}
		}
	}

	for _, b := range confidenceBands {
		if inc.ClassificationConfidence >= b.limit {
			score += b.points
			factors = append(factors, fmt.Sprintf("Confianza de clasificación ≥ %.0f%%", b.limit*100))
			break
		}
	}

	if inc.ArmsMentioned {
		score += armsPoints
		factors = append(factors, "Armas mencionadas")
	}

	if inc.Victims > 0 {
		score += victimsPoints
		factors = append(factors, fmt.Sprintf("%d víctimas reportadas", inc.Victims))
	}

	if d, ok := NearestZoneKm(inc, zones); ok {
		for _, b := range proximityBands {
			if d <= b.limit {
				score += b.points
				factors = append(factors, fmt.Sprintf("A %.1f km de un servicio activo", d))
				break
			}
		}
	}

	return Relevance{Score: clamp(score), Factors: factors}
}

// NearestZoneKm returns the minimum haversine distance from the incident to any
// zone origin or destination. ok is false when either side lacks coordinates.
func NearestZoneKm(inc models.Incident, zones []models.Zone) (float64, bool) {
	p, ok := inc.Coordinates()
	if !ok {
		return 0, false
	}
	var targets []geo.Point
	for _, z := range zones {
		targets = append(targets, z.Points()...)
	}
	return geo.Nearest(p, targets)
}

// Rank scores every incident and orders them by score descending. Equal
// scores keep their input order.
func (s *Scorer) Rank(incidents []models.Incident, zones []models.Zone) []ScoredIncident {
	out := make([]ScoredIncident, len(incidents))
	for i, inc := range incidents {
		out[i] = ScoredIncident{Incident: inc, Relevance: s.Score(inc, zones)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance.Score > out[j].Relevance.Score
	})
	return out
}

func clamp(score int) int {
	return min(max(score, MinScore), MaxScore)
}
