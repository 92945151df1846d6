//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/manuchak/detecta-core/internal/geo"
	"github.com/manuchak/detecta-core/internal/models"
	"github.com/manuchak/detecta-core/internal/testutil"
)

func TestPostgresStore_WithContainer(t *testing.T) {
	db := testutil.StartPostgres(t)
	ctx := context.Background()
	st := New(db)

	if _, ok := st.(*PostgresStore); !ok {
		t.Fatalf("expected PostgresStore for a configured database, got %T", st)
	}

	now := time.Now().UTC().Truncate(time.Second)
	critical := models.Incident{
		ID:                       "int-1",
		Source:                   "integration",
		Title:                    "Asalto armado en la México-Querétaro",
		URL:                      "https://example.com/1",
		PublishedAt:              now.Add(-time.Hour),
		DetectedAt:               now,
		Severity:                 models.SeverityCritical,
		ClassificationConfidence: 0.9,
		ArmsMentioned:            true,
		Victims:                  2,
	}
	critical.SetCoordinates(geo.Point{Lat: 20.5888, Lng: -100.3899})
	low := models.Incident{
		ID:          "int-2",
		Source:      "integration",
		Title:       "Tráfico lento",
		PublishedAt: now.Add(-48 * time.Hour),
		DetectedAt:  now,
		Severity:    models.SeverityLow,
	}

	if err := st.UpsertIncidents(ctx, []models.Incident{critical, low}); err != nil {
		t.Fatalf("UpsertIncidents: %v", err)
	}

	critical.Title = "Asalto armado (actualizado)"
	if err := st.UpsertIncidents(ctx, []models.Incident{critical}); err != nil {
		t.Fatalf("UpsertIncidents update: %v", err)
	}

	res, err := st.QueryIncidents(ctx, models.IncidentQuery{Sources: []string{"integration"}, Limit: 10})
	if err != nil {
		t.Fatalf("QueryIncidents: %v", err)
	}
	if len(res) != 2 || res[0].ID != "int-1" {
		t.Fatalf("expected newest first, got %+v", res)
	}

	res, err = st.QueryIncidents(ctx, models.IncidentQuery{Severities: []models.Severity{models.SeverityCritical}})
	if err != nil || len(res) != 1 {
		t.Fatalf("severity filter: %v %d", err, len(res))
	}

	one, err := st.GetIncident(ctx, "int-1")
	if err != nil {
		t.Fatalf("GetIncident: %v", err)
	}
	if one == nil || one.Title != "Asalto armado (actualizado)" || one.Victims != 2 || !one.ArmsMentioned {
		t.Fatalf("unexpected incident: %+v", one)
	}
	if p, ok := one.Coordinates(); !ok || p.Lat != 20.5888 {
		t.Errorf("coordinates not persisted: %+v", p)
	}

	missing, err := st.GetIncident(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing incident, got %+v %v", missing, err)
	}

	if err := db.Exec(ctx, `INSERT INTO active_services (id, origin_lat, origin_lng, destination_lat, destination_lng, status)
		VALUES ('svc-1', 20.5888, -100.3899, NULL, NULL, 'in_progress'),
		       ('svc-2', 19.4326, -99.1332, 20.6597, -103.3496, 'completed')`); err != nil {
		t.Fatalf("seed services: %v", err)
	}
	zones, err := st.ActiveZones(ctx)
	if err != nil {
		t.Fatalf("ActiveZones: %v", err)
	}
	if len(zones) != 1 || zones[0].ServiceID != "svc-1" || zones[0].Destination != nil {
		t.Errorf("unexpected zones %+v", zones)
	}

	if err := st.Health(ctx); err != nil {
		t.Errorf("Health: %v", err)
	}
}
