package pricing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	redis "github.com/redis/go-redis/v9"

	"github.com/manuchak/detecta-core/config"
)

type mockDB struct {
	QueryFn        func(ctx context.Context, sql string, args ...any) (interface{}, error)
	IsConfiguredFn func() bool
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (interface{}, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, sql, args...)
	}
	return nil, nil
}

func (m *mockDB) IsConfigured() bool {
	if m.IsConfiguredFn != nil {
		return m.IsConfiguredFn()
	}
	return true
}

// bandRows is a minimal pgx.Rows over in-memory bands
type bandRows struct {
	bands  []RateBand
	idx    int
	closed bool
}

func (r *bandRows) Close()                                       { r.closed = true }
func (r *bandRows) Err() error                                   { return nil }
func (r *bandRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *bandRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *bandRows) Values() ([]any, error)                       { return nil, nil }
func (r *bandRows) RawValues() [][]byte                          { return nil }
func (r *bandRows) Conn() *pgx.Conn                              { return nil }

func (r *bandRows) Next() bool {
	if r.idx >= len(r.bands) {
		return false
	}
	r.idx++
	return true
}

func (r *bandRows) Scan(dest ...any) error {
	b := r.bands[r.idx-1]
	*dest[0].(*float64) = b.KmMin
	*dest[1].(**float64) = b.KmMax
	*dest[2].(*float64) = b.RatePerKm
	*dest[3].(*string) = b.Label
	return nil
}

func TestPostgresBandSource_Bands(t *testing.T) {
	var gotSQL string
	rows := &bandRows{bands: DefaultBands()}
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
		gotSQL = sql
		return rows, nil
	}}

	bands, err := NewPostgresBandSource(db).Bands(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(bands) != 4 {
		t.Fatalf("Expected 4 bands, got %d", len(bands))
	}
	if bands[3].KmMax != nil {
		t.Errorf("Expected open-ended last band")
	}
	if bands[1].KmMax == nil || *bands[1].KmMax != 250 {
		t.Errorf("Expected km_max 250 for second band, got %v", bands[1].KmMax)
	}
	if !strings.Contains(gotSQL, "FROM armed_km_rates") || !strings.Contains(gotSQL, "ORDER BY km_min") {
		t.Errorf("Unexpected SQL: %s", gotSQL)
	}
	if !rows.closed {
		t.Errorf("Expected rows to be closed")
	}
}

func TestPostgresBandSource_Errors(t *testing.T) {
	t.Run("Query error is wrapped", func(t *testing.T) {
		db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
			return nil, errors.New("db down")
		}}
		_, err := NewPostgresBandSource(db).Bands(context.Background())
		if err == nil || !strings.Contains(err.Error(), "query rate bands") {
			t.Errorf("Expected wrapped query error, got %v", err)
		}
	})

	t.Run("Invalid rows type", func(t *testing.T) {
		db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (interface{}, error) {
			return 123, nil
		}}
		_, err := NewPostgresBandSource(db).Bands(context.Background())
		if err == nil || !strings.Contains(err.Error(), "invalid rows type") {
			t.Errorf("Expected invalid rows type error, got %v", err)
		}
	})

	t.Run("Unconfigured database yields no rows", func(t *testing.T) {
		db := &mockDB{IsConfiguredFn: func() bool { return false }}
		bands, err := NewPostgresBandSource(db).Bands(context.Background())
		if err != nil || len(bands) != 0 {
			t.Errorf("Expected empty result, got %v %v", bands, err)
		}
	})
}

type countingSource struct {
	bands []RateBand
	err   error
	calls int
}

func (s *countingSource) Bands(ctx context.Context) ([]RateBand, error) {
	s.calls++
	return s.bands, s.err
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	client, err := NewRedisClient(config.RedisConfig{URL: "redis://" + s.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedisBandCache_ReadThrough(t *testing.T) {
	s, client := newTestRedis(t)
	ctx := context.Background()
	src := &countingSource{bands: DefaultBands()}
	cache := NewRedisBandCache(client, src, time.Minute)

	for i := 0; i < 3; i++ {
		bands, err := cache.Bands(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(bands) != 4 {
			t.Fatalf("Expected 4 bands, got %d", len(bands))
		}
		if bands[3].KmMax != nil {
			t.Errorf("Open-ended band lost its nil km_max through the cache")
		}
	}
	if src.calls != 1 {
		t.Errorf("Expected source to be hit once, got %d", src.calls)
	}

	s.FastForward(2 * time.Minute)
	if _, err := cache.Bands(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("Expected reload after TTL expiry, got %d calls", src.calls)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Exists(bandCacheKey) {
		t.Errorf("Expected cache key to be removed")
	}
}

func TestRedisBandCache_EmptyAndErrors(t *testing.T) {
	s, client := newTestRedis(t)
	ctx := context.Background()

	empty := &countingSource{}
	cache := NewRedisBandCache(client, empty, time.Minute)
	if _, err := cache.Bands(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Exists(bandCacheKey) {
		t.Errorf("Empty results must not be cached")
	}

	failing := &countingSource{err: errors.New("db down")}
	cache = NewRedisBandCache(client, failing, time.Minute)
	if _, err := cache.Bands(ctx); err == nil {
		t.Errorf("Expected source error to propagate")
	}

	if err := s.Set(bandCacheKey, "not json"); err != nil {
		t.Fatal(err)
	}
	fresh := &countingSource{bands: DefaultBands()}
	cache = NewRedisBandCache(client, fresh, time.Minute)
	bands, err := cache.Bands(ctx)
	if err != nil || len(bands) != 4 || fresh.calls != 1 {
		t.Errorf("Expected corrupt entry to be replaced from source, got %v %v calls=%d", bands, err, fresh.calls)
	}
}

func TestProvider_Calculator(t *testing.T) {
	ctx := context.Background()

	calc, err := NewProvider(nil, 0).Calculator(ctx)
	if err != nil || !calc.UsingFallback() {
		t.Errorf("Expected fallback calculator for nil source, got %v", err)
	}

	calc, err = NewProvider(&countingSource{}, 700).Calculator(ctx)
	if err != nil || !calc.UsingFallback() {
		t.Errorf("Expected fallback calculator for zero rows, got %v", err)
	}

	custom := StaticBandSource{{KmMin: 0, KmMax: nil, RatePerKm: 10, Label: "flat"}}
	calc, err = NewProvider(custom, 700).Calculator(ctx)
	if err != nil || calc.UsingFallback() {
		t.Fatalf("Expected configured calculator, got %v", err)
	}
	if q := calc.CostPerKm(10); q.Cost != 100 {
		t.Errorf("Expected flat rate cost 100, got %v", q.Cost)
	}

	_, err = NewProvider(&countingSource{err: errors.New("boom")}, 700).Calculator(ctx)
	if err == nil || !strings.Contains(err.Error(), "load rate bands") {
		t.Errorf("Expected wrapped load error, got %v", err)
	}
}

func TestNewRedisClient_BadURL(t *testing.T) {
	if _, err := NewRedisClient(config.RedisConfig{URL: "://nope"}); err == nil {
		t.Errorf("Expected parse error")
	}
}
