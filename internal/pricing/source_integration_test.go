//go:build integration

package pricing

import (
	"context"
	"testing"

	"github.com/manuchak/detecta-core/internal/testutil"
)

func TestPostgresBandSource_WithContainer(t *testing.T) {
	db := testutil.StartPostgres(t)
	ctx := context.Background()
	provider := NewProvider(NewPostgresBandSource(db), DefaultMaxKm)

	calc, err := provider.Calculator(ctx)
	if err != nil {
		t.Fatalf("Calculator: %v", err)
	}
	if !calc.UsingFallback() {
		t.Errorf("expected default bands for an empty table")
	}

	if err := db.Exec(ctx, `INSERT INTO armed_km_rates (km_min, km_max, rate_per_km, label, active) VALUES
		(200, NULL, 4.0, '200+ km', true),
		(0, 200, 5.0, '0-200 km', true),
		(0, 50, 99.0, 'retired', false)`); err != nil {
		t.Fatalf("seed bands: %v", err)
	}

	calc, err = provider.Calculator(ctx)
	if err != nil {
		t.Fatalf("Calculator: %v", err)
	}
	if calc.UsingFallback() || len(calc.Bands()) != 2 {
		t.Fatalf("expected the two active bands, got %+v", calc.Bands())
	}
	if got := calc.StaircaseCost(300); got != 1400 {
		t.Errorf("StaircaseCost(300) = %v, want 1400", got)
	}
	if got := calc.CostPerKm(300).Cost; got != 1200 {
		t.Errorf("CostPerKm(300) = %v, want 1200", got)
	}
}
