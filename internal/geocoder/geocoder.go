package geocoder

import (
	"strings"
	"unicode"

	"github.com/manuchak/detecta-core/internal/location"
	"github.com/manuchak/detecta-core/internal/models"
)

// Geocoder resolves incident locations against the gazetteer
type Geocoder struct {
	places    []Place
	names     []string
	byName    map[string]Place
	threshold float64
}

// New creates a geocoder over the built-in gazetteer
func New() *Geocoder {
	return NewWithPlaces(places, location.DefaultThreshold)
}

// NewWithPlaces creates a geocoder over custom places. Names are normalized.
func NewWithPlaces(ps []Place, threshold float64) *Geocoder {
	g := &Geocoder{byName: make(map[string]Place, len(ps)), threshold: threshold}
	for _, p := range ps {
		p.Name = location.NormalizeText(p.Name)
		if _, dup := g.byName[p.Name]; dup {
			continue
		}
		g.places = append(g.places, p)
		g.names = append(g.names, p.Name)
		g.byName[p.Name] = p
	}
	return g
}

// Lookup finds the place for a city name, tolerating typos up to the
// similarity threshold
func (g *Geocoder) Lookup(city string) (Place, bool) {
	name := location.NormalizeText(city)
	if p, ok := g.byName[name]; ok {
		return p, true
	}
	if canonical, ok := location.Canonicalize(name, g.names, g.threshold); ok {
		return g.byName[canonical], true
	}
	return Place{}, false
}

// Geocode fills location, state and coordinates of inc. An explicit
// "CITY, STATE" location wins; otherwise the title and summary are scanned
// for the earliest gazetteer name. Incidents that cannot be placed are left
// untouched apart from a detected state.
func (g *Geocoder) Geocode(inc *models.Incident) error {
	if parsed, ok := location.ParseLocation(inc.Location); ok && parsed.City != "" {
		if p, found := g.Lookup(parsed.City); found {
			g.apply(inc, p)
			return nil
		}
	}

	text := inc.Title + " " + inc.Summary
	if p, ok := g.scan(text); ok {
		g.apply(inc, p)
		return nil
	}

	if inc.State == "" {
		if state, ok := location.AutoDetectState(inc.Location + " " + text); ok {
			inc.State = state
		}
	}
	return nil
}

func (g *Geocoder) apply(inc *models.Incident, p Place) {
	inc.Location = location.Format(p.Name, p.State)
	inc.State = p.State
	inc.SetCoordinates(p.Point)
}

// scan returns the place whose name appears first in text as whole words.
// On equal positions the longer name wins.
func (g *Geocoder) scan(text string) (Place, bool) {
	padded := " " + wordsOnly(location.NormalizeText(text)) + " "

	best, bestIdx := Place{}, -1
	for _, p := range g.places {
		idx := strings.Index(padded, " "+p.Name+" ")
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx || (idx == bestIdx && len(p.Name) > len(best.Name)) {
			best, bestIdx = p, idx
		}
	}
	return best, bestIdx >= 0
}

// wordsOnly replaces punctuation with spaces and collapses runs of spaces
func wordsOnly(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
