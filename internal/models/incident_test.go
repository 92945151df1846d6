package models

import (
	"testing"
	"time"

	"github.com/manuchak/detecta-core/internal/geo"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in     string
		want   Severity
		wantOK bool
	}{
		{"critica", SeverityCritical, true},
		{"Crítica", SeverityCritical, true},
		{" ALTA ", SeverityHigh, true},
		{"medium", SeverityMedium, true},
		{"baja", SeverityLow, true},
		{"urgente", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSeverity(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSeverity(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	if !(SeverityCritical.Rank() > SeverityHigh.Rank() &&
		SeverityHigh.Rank() > SeverityMedium.Rank() &&
		SeverityMedium.Rank() > SeverityLow.Rank() &&
		SeverityLow.Rank() > Severity("otro").Rank()) {
		t.Error("severity ranks are not strictly ordered")
	}
}

func TestIncident_Coordinates(t *testing.T) {
	var inc Incident
	if _, ok := inc.Coordinates(); ok {
		t.Error("expected no coordinates on empty incident")
	}

	inc.SetCoordinates(geo.Point{Lat: 20.67, Lng: -103.35})
	p, ok := inc.Coordinates()
	if !ok || p.Lat != 20.67 || p.Lng != -103.35 {
		t.Errorf("unexpected coordinates %+v %v", p, ok)
	}

	inc.SetCoordinates(geo.Point{})
	if _, ok := inc.Coordinates(); ok {
		t.Error("0,0 must be treated as missing")
	}
}

func TestIncidentQuery_Matches(t *testing.T) {
	inc := Incident{
		ID:          "inc-1",
		Source:      "rss",
		Severity:    SeverityHigh,
		State:       "Jalisco",
		PublishedAt: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name  string
		query IncidentQuery
		want  bool
	}{
		{"empty query", IncidentQuery{}, true},
		{"id match", IncidentQuery{IDs: []string{"inc-1"}}, true},
		{"id miss", IncidentQuery{IDs: []string{"inc-2"}}, false},
		{"source miss", IncidentQuery{Sources: []string{"manual"}}, false},
		{"severity match", IncidentQuery{Severities: []Severity{SeverityHigh, SeverityCritical}}, true},
		{"severity miss", IncidentQuery{Severities: []Severity{SeverityLow}}, false},
		{"state miss", IncidentQuery{States: []string{"Sonora"}}, false},
		{"since after", IncidentQuery{Since: inc.PublishedAt.Add(time.Hour)}, false},
		{"until before", IncidentQuery{Until: inc.PublishedAt.Add(-time.Hour)}, false},
		{"window contains", IncidentQuery{Since: inc.PublishedAt.Add(-time.Hour), Until: inc.PublishedAt.Add(time.Hour)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(inc); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZone_Points(t *testing.T) {
	origin := geo.Point{Lat: 19.43, Lng: -99.13}
	bad := geo.Point{}
	z := Zone{ServiceID: "svc", Origin: &origin, Destination: &bad}
	if pts := z.Points(); len(pts) != 1 || pts[0] != origin {
		t.Errorf("unexpected points %+v", pts)
	}
	if pts := (Zone{}).Points(); len(pts) != 0 {
		t.Errorf("expected no points, got %+v", pts)
	}
}
