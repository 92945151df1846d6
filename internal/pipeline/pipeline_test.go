package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/manuchak/detecta-core/config"
	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/models"
	"github.com/manuchak/detecta-core/internal/uploadqueue"
)

// MockStore for testing
type MockStore struct {
	mu        sync.Mutex
	incidents []models.Incident
	err       error
}

func (m *MockStore) UpsertIncidents(ctx context.Context, incidents []models.Incident) error {
	if m.err != nil {
		return m.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, incidents...)
	return nil
}

func (m *MockStore) stored() []models.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Incident(nil), m.incidents...)
}

// MockClassifier for testing
type MockClassifier struct {
	severity models.Severity
}

func (m *MockClassifier) Classify(inc *models.Incident) {
	inc.Severity = models.SeverityMedium
	if m.severity != "" {
		inc.Severity = m.severity
	}
	if inc.ClassificationConfidence == 0 {
		inc.ClassificationConfidence = 0.8
	}
}

// MockGeocoder for testing
type MockGeocoder struct {
	err error
}

func (m *MockGeocoder) Geocode(inc *models.Incident) error {
	if m.err != nil {
		return m.err
	}
	inc.Location = "CELAYA, GUANAJUATO"
	inc.State = "Guanajuato"
	return nil
}

// MockSource for testing
type MockSource struct {
	name      string
	incidents []models.Incident
	err       error
	interval  time.Duration
	calls     int
}

func (m *MockSource) Name() string {
	return m.name
}

func (m *MockSource) Fetch(ctx context.Context) ([]models.Incident, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.incidents, nil
}

func (m *MockSource) Interval() time.Duration {
	if m.interval == 0 {
		return 100 * time.Millisecond
	}
	return m.interval
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		RateLimit:     100.0,
		WorkerCount:   2,
		BatchSize:     10,
		RetryAttempts: 1,
		RetryDelay:    10 * time.Millisecond,
	}
}

func newTestPipeline(store Store, geocoder Geocoder) *Pipeline {
	q := uploadqueue.New(uploadqueue.Options{MaxConcurrent: 1})
	return New(store, &MockClassifier{}, geocoder, q, testConfig())
}

func TestNew(t *testing.T) {
	logger.Init("error", "text")

	store := &MockStore{}
	cfg := testConfig()
	cfg.Feeds = []string{"http://example.com/rss"}

	p := New(store, &MockClassifier{}, &MockGeocoder{}, nil, cfg)
	if p.store != store {
		t.Error("Store not set correctly")
	}
	if p.queue == nil {
		t.Error("Expected a private queue when none is given")
	}
	if len(p.sources) != 1 || p.sources[0].Name() != "rss" {
		t.Errorf("Expected one RSS source, got %d", len(p.sources))
	}

	p = New(store, &MockClassifier{}, &MockGeocoder{}, nil, config.PipelineConfig{})
	if len(p.sources) != 0 {
		t.Errorf("Expected no sources without feeds")
	}
}

func TestPipeline_ProcessBatch(t *testing.T) {
	store := &MockStore{}
	p := newTestPipeline(store, &MockGeocoder{})

	incidents := []models.Incident{
		{Title: "Robo en Celaya", URL: "http://example.com/1"},
		{Title: "Asalto en Celaya", URL: "http://example.com/2"},
	}

	if err := p.processBatch(context.Background(), "test-source", incidents); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stored := store.stored()
	if len(stored) != 2 {
		t.Fatalf("Expected 2 incidents in store, got %d", len(stored))
	}
	for _, inc := range stored {
		if inc.Source != "test-source" {
			t.Errorf("Expected source 'test-source', got %s", inc.Source)
		}
		if inc.ID == "" {
			t.Error("Expected ID to be generated")
		}
		if inc.DetectedAt.IsZero() {
			t.Error("Expected DetectedAt to be set")
		}
		if inc.Severity != models.SeverityMedium {
			t.Errorf("Expected severity media, got %s", inc.Severity)
		}
		if inc.State != "Guanajuato" {
			t.Errorf("Expected geocoded state, got %s", inc.State)
		}
	}
	if stored[0].ID == stored[1].ID {
		t.Error("Expected distinct IDs for distinct links")
	}
	if s := p.queue.Stats(); s.Completed != 1 {
		t.Errorf("Expected one queued upload, got %+v", s)
	}
}

func TestPipeline_ProcessBatch_GeocodingError(t *testing.T) {
	store := &MockStore{}
	p := newTestPipeline(store, &MockGeocoder{err: errors.New("geocoding failed")})

	incidents := []models.Incident{{Title: "Robo", URL: "http://example.com/1", ClassificationConfidence: 1.0}}
	if err := p.processBatch(context.Background(), "test-source", incidents); err != nil {
		t.Fatalf("Expected no error despite geocoding failure, got %v", err)
	}

	stored := store.stored()
	if len(stored) != 1 {
		t.Fatalf("Expected 1 incident in store, got %d", len(stored))
	}
	if stored[0].ClassificationConfidence >= 1.0 {
		t.Errorf("Expected confidence to be reduced, got %f", stored[0].ClassificationConfidence)
	}
}

func TestPipeline_ProcessBatch_StoreError(t *testing.T) {
	p := newTestPipeline(&MockStore{err: errors.New("store error")}, &MockGeocoder{})

	err := p.processBatch(context.Background(), "test-source", []models.Incident{{Title: "Robo", URL: "http://example.com/1"}})
	if err == nil {
		t.Fatal("Expected error from store, got nil")
	}
	if s := p.queue.Stats(); s.Failed != 1 {
		t.Errorf("Expected failed upload to be counted, got %+v", s)
	}
}

func TestPipeline_ProcessBatch_ContextCancelledWhilePaused(t *testing.T) {
	p := newTestPipeline(&MockStore{}, &MockGeocoder{})
	p.queue.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.processBatch(ctx, "test-source", []models.Incident{{Title: "Robo", URL: "http://example.com/1"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	p.queue.Clear()
}

func TestPipeline_ProcessBatch_DrainPersistsAfterCallerCancelled(t *testing.T) {
	store := &MockStore{}
	p := newTestPipeline(store, &MockGeocoder{})
	p.queue.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := p.processBatch(ctx, "test-source", []models.Incident{{Title: "Robo", URL: "http://example.com/1"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected cancellation, got %v", err)
	}

	p.queue.Resume()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	if err := p.queue.Drain(drainCtx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if len(store.stored()) != 1 {
		t.Errorf("Expected the queued batch to be persisted during drain, got %d incidents", len(store.stored()))
	}
	if s := p.queue.Stats(); s.Failed != 0 || s.Completed != 1 {
		t.Errorf("Unexpected queue stats %+v", s)
	}
}

func TestBatchPriority(t *testing.T) {
	if batchPriority(models.SeverityCritical.Rank()) != 0 {
		t.Error("critica batches must get priority 0")
	}
	if batchPriority(models.SeverityLow.Rank()) <= batchPriority(models.SeverityHigh.Rank()) {
		t.Error("lower severity must sort after higher severity")
	}
}

func TestPipeline_RunOnce(t *testing.T) {
	store := &MockStore{}
	p := newTestPipeline(store, &MockGeocoder{})

	src := &MockSource{
		name:      "test-source",
		incidents: []models.Incident{{Title: "Robo", URL: "http://example.com/1"}},
	}
	if err := p.RunOnce(context.Background(), src); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(store.stored()) != 1 {
		t.Errorf("Expected 1 incident in store, got %d", len(store.stored()))
	}
}

func TestPipeline_RunOnce_FetchErrorRetries(t *testing.T) {
	p := newTestPipeline(&MockStore{}, &MockGeocoder{})

	src := &MockSource{name: "test-source", err: errors.New("fetch error")}
	err := p.RunOnce(context.Background(), src)
	var pe apperrors.PipelineError
	if !errors.As(err, &pe) || pe.Stage != "fetch" || pe.Source != "test-source" {
		t.Errorf("Expected fetch PipelineError, got %v", err)
	}
	if src.calls != 2 {
		t.Errorf("Expected 1 retry, got %d calls", src.calls)
	}
}

func TestPipeline_RunOnce_NoIncidents(t *testing.T) {
	store := &MockStore{}
	p := newTestPipeline(store, &MockGeocoder{})

	if err := p.RunOnce(context.Background(), &MockSource{name: "test-source"}); err != nil {
		t.Errorf("Expected no error when no incidents, got %v", err)
	}
	if len(store.stored()) != 0 {
		t.Errorf("Expected 0 incidents in store, got %d", len(store.stored()))
	}
}

func TestPipeline_IsRunning(t *testing.T) {
	p := newTestPipeline(&MockStore{}, &MockGeocoder{})
	p.AddSource(&MockSource{name: "test-source"})

	if p.IsRunning() {
		t.Error("Expected pipeline not to be running initially")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if !p.IsRunning() {
		t.Error("Expected pipeline to be running")
	}
	if err := p.Run(ctx); err == nil {
		t.Error("Expected error when pipeline already running, got nil")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}
	if p.IsRunning() {
		t.Error("Expected pipeline to stop running after context cancellation")
	}
}
