package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/manuchak/detecta-core/internal/logger"
)

// BandSource loads the configured rate bands
type BandSource interface {
	Bands(ctx context.Context) ([]RateBand, error)
}

// Database is the subset of database.DB the band source needs
type Database interface {
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	IsConfigured() bool
}

// PostgresBandSource reads active bands from the armed_km_rates table
type PostgresBandSource struct {
	db Database
}

// NewPostgresBandSource creates a band source backed by db
func NewPostgresBandSource(db Database) *PostgresBandSource {
	return &PostgresBandSource{db: db}
}

// Bands returns active bands ordered by km_min. An unconfigured database
// yields no rows, which callers treat like an empty table.
func (s *PostgresBandSource) Bands(ctx context.Context) ([]RateBand, error) {
	if s.db == nil || !s.db.IsConfigured() {
		return nil, nil
	}

	rowsInterface, err := s.db.Query(ctx, `
		SELECT km_min, km_max, rate_per_km, label
		FROM armed_km_rates
		WHERE active = true
		ORDER BY km_min ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rate bands: %w", err)
	}

	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var bands []RateBand
	for rows.Next() {
		var b RateBand
		if err := rows.Scan(&b.KmMin, &b.KmMax, &b.RatePerKm, &b.Label); err != nil {
			return nil, fmt.Errorf("scan rate band: %w", err)
		}
		bands = append(bands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate bands: %w", err)
	}

	return bands, nil
}

// StaticBandSource serves a fixed set of bands, used by the CLI and tests
type StaticBandSource []RateBand

// Bands returns the static bands
func (s StaticBandSource) Bands(ctx context.Context) ([]RateBand, error) {
	return []RateBand(s), nil
}

// Provider builds calculators from a band source
type Provider struct {
	source BandSource
	maxKm  float64
}

// NewProvider creates a provider; a nil source always yields DefaultBands
func NewProvider(source BandSource, maxKm float64) *Provider {
	return &Provider{source: source, maxKm: maxKm}
}

// Calculator loads the current bands. Zero rows select DefaultBands; a load
// error is returned so the caller can decide how to degrade.
func (p *Provider) Calculator(ctx context.Context) (*Calculator, error) {
	if p.source == nil {
		return NewCalculator(nil, p.maxKm), nil
	}

	bands, err := p.source.Bands(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rate bands: %w", err)
	}
	if len(bands) == 0 {
		logger.Warn("No rate bands configured; using default bands")
	}

	return NewCalculator(bands, p.maxKm), nil
}
