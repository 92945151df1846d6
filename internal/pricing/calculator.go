// Package pricing computes per-km prices for armed custody services.
//
// Two pricing models live side by side and give different results for the
// same distance:
//
//   - CostPerKm prices the whole distance at the rate of the single band the
//     distance falls in ("which bracket are you in").
//   - StaircaseCost integrates across bands like income-tax brackets: the
//     first 100 km at the first rate, the next 150 km at the second, and so on.
//
// Callers must choose one explicitly; neither is the default.
package pricing

import (
	"math"
	"sort"
)

// DefaultMaxKm caps every quote
const DefaultMaxKm = 700.0

// RateBand is one pricing bracket. KmMax nil means open-ended.
type RateBand struct {
	KmMin     float64  `json:"km_min"`
	KmMax     *float64 `json:"km_max"`
	RatePerKm float64  `json:"rate_per_km"`
	Label     string   `json:"label"`
}

// Contains reports whether km falls in (KmMin, KmMax]
func (b RateBand) Contains(km float64) bool {
	if km <= b.KmMin {
		return false
	}
	return b.KmMax == nil || km <= *b.KmMax
}

// Width is the number of km the band covers; +Inf for the open-ended band
func (b RateBand) Width() float64 {
	if b.KmMax == nil {
		return math.Inf(1)
	}
	return math.Max(0, *b.KmMax-b.KmMin)
}

func kmPtr(v float64) *float64 { return &v }

// DefaultBands is used only when rate storage returns zero rows
func DefaultBands() []RateBand {
	return []RateBand{
		{KmMin: 0, KmMax: kmPtr(100), RatePerKm: 6.0, Label: "0-100 km"},
		{KmMin: 100, KmMax: kmPtr(250), RatePerKm: 5.5, Label: "100-250 km"},
		{KmMin: 250, KmMax: kmPtr(400), RatePerKm: 5.0, Label: "250-400 km"},
		{KmMin: 400, KmMax: nil, RatePerKm: 4.6, Label: "400+ km"},
	}
}

// Quote is the single-tier price of a distance
type Quote struct {
	Km   float64  `json:"km"`
	Cost float64  `json:"costo"`
	Rate float64  `json:"tarifa"`
	Band RateBand `json:"rango"`
}

// Segment is the part of a staircase price charged at one band's rate
type Segment struct {
	Band     RateBand `json:"rango"`
	Km       float64  `json:"km"`
	Subtotal float64  `json:"subtotal"`
}

// Comparison puts both models next to each other for the same distance
type Comparison struct {
	Km         float64   `json:"km"`
	SingleTier Quote     `json:"single_tier"`
	Staircase  float64   `json:"staircase"`
	Segments   []Segment `json:"segments"`
	Difference float64   `json:"difference"`
}

// Calculator prices distances against an ordered set of bands. It is
// immutable after construction and safe for concurrent use.
type Calculator struct {
	bands    []RateBand
	maxKm    float64
	fallback bool
}

// NewCalculator sorts a copy of bands by KmMin. An empty slice selects
// DefaultBands; maxKm <= 0 selects DefaultMaxKm.
func NewCalculator(bands []RateBand, maxKm float64) *Calculator {
	c := &Calculator{maxKm: maxKm}
	if c.maxKm <= 0 || math.IsNaN(c.maxKm) {
		c.maxKm = DefaultMaxKm
	}
	if len(bands) == 0 {
		c.bands = DefaultBands()
		c.fallback = true
		return c
	}
	c.bands = make([]RateBand, len(bands))
	copy(c.bands, bands)
	sort.SliceStable(c.bands, func(i, j int) bool {
		return c.bands[i].KmMin < c.bands[j].KmMin
	})
	return c
}

// Bands returns a copy of the bands in ascending order
func (c *Calculator) Bands() []RateBand {
	out := make([]RateBand, len(c.bands))
	copy(out, c.bands)
	return out
}

// UsingFallback reports whether DefaultBands are in effect
func (c *Calculator) UsingFallback() bool { return c.fallback }

// MaxKm is the clamp applied to every distance
func (c *Calculator) MaxKm() float64 { return c.maxKm }

func (c *Calculator) clamp(km float64) float64 {
	if math.IsNaN(km) || km < 0 {
		return 0
	}
	return math.Min(km, c.maxKm)
}

// CostPerKm prices the whole (clamped) distance at the rate of the band that
// contains it. When no band matches, km = 0 included, the last band applies.
func (c *Calculator) CostPerKm(km float64) Quote {
	km = c.clamp(km)

	band := c.bands[len(c.bands)-1]
	for _, b := range c.bands {
		if b.Contains(km) {
			band = b
			break
		}
	}

	return Quote{
		Km:   km,
		Cost: km * band.RatePerKm,
		Rate: band.RatePerKm,
		Band: band,
	}
}

// StaircaseCost prices the (clamped) distance progressively across bands
func (c *Calculator) StaircaseCost(km float64) float64 {
	total := 0.0
	for _, s := range c.StaircaseBreakdown(km) {
		total += s.Subtotal
	}
	return total
}

// StaircaseBreakdown lists how many km were charged at each band's rate
func (c *Calculator) StaircaseBreakdown(km float64) []Segment {
	remaining := c.clamp(km)
	segments := make([]Segment, 0, len(c.bands))

	for _, b := range c.bands {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, b.Width())
		if take <= 0 {
			continue
		}
		segments = append(segments, Segment{
			Band:     b,
			Km:       take,
			Subtotal: take * b.RatePerKm,
		})
		remaining -= take
	}

	return segments
}

// Compare evaluates both models for km
func (c *Calculator) Compare(km float64) Comparison {
	quote := c.CostPerKm(km)
	segments := c.StaircaseBreakdown(km)
	staircase := 0.0
	for _, s := range segments {
		staircase += s.Subtotal
	}
	return Comparison{
		Km:         quote.Km,
		SingleTier: quote,
		Staircase:  staircase,
		Segments:   segments,
		Difference: staircase - quote.Cost,
	}
}
