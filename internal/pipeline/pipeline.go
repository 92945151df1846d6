package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/manuchak/detecta-core/config"
	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/metrics"
	"github.com/manuchak/detecta-core/internal/models"
	"github.com/manuchak/detecta-core/internal/uploadqueue"
	"github.com/manuchak/detecta-core/pkg/utils"
)

// Source defines a pluggable incident source
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Incident, error)
	Interval() time.Duration
}

// Classifier derives severity and related fields
type Classifier interface {
	Classify(inc *models.Incident)
}

// Geocoder places an incident
type Geocoder interface {
	Geocode(inc *models.Incident) error
}

// Store interface for incident storage
type Store interface {
	UpsertIncidents(ctx context.Context, incidents []models.Incident) error
}

// Pipeline fetches, classifies, geocodes and persists incidents. Persistence
// goes through the upload queue so the most severe batches reach the store
// first and writes stay throttled.
type Pipeline struct {
	store      Store
	classifier Classifier
	geocoder   Geocoder
	queue      *uploadqueue.Queue
	limiter    *rate.Limiter
	sources    []Source
	cfg        config.PipelineConfig
	sem        *semaphore.Weighted
	mu         sync.RWMutex
	running    bool
}

// New creates a pipeline with one RSS source over cfg.Feeds. A nil queue
// gets a private one with default settings.
func New(store Store, classifier Classifier, geocoder Geocoder, queue *uploadqueue.Queue, cfg config.PipelineConfig) *Pipeline {
	if queue == nil {
		queue = uploadqueue.New(uploadqueue.Options{})
	}
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}

	p := &Pipeline{
		store:      store,
		classifier: classifier,
		geocoder:   geocoder,
		queue:      queue,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		sem:        semaphore.NewWeighted(int64(workers)),
	}

	if len(cfg.Feeds) > 0 {
		p.sources = append(p.sources, NewRSSSource("rss", cfg.Feeds, cfg.PollInterval))
	}

	logger.Info("Pipeline initialized",
		"sources", len(p.sources),
		"rate_limit", cfg.RateLimit,
		"workers", workers,
	)

	return p
}

// AddSource registers an additional source. It must be called before Run.
func (p *Pipeline) AddSource(src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, src)
}

// Run starts one poller per source and blocks until ctx is cancelled
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	sources := append([]Source(nil), p.sources...)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logger.Info("Starting pipeline", "sources", len(sources))

	var wg sync.WaitGroup
	for _, src := range sources {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runSourcePoller(ctx, src)
		}()
	}
	wg.Wait()

	logger.Info("Pipeline stopped")
	return nil
}

// runSourcePoller runs src immediately and then on every tick until ctx ends
func (p *Pipeline) runSourcePoller(ctx context.Context, src Source) {
	log := logger.With("pipeline").With("source", src.Name())
	log.Info("Starting source poller")

	ticker := time.NewTicker(src.Interval())
	defer ticker.Stop()

	if err := p.RunOnce(ctx, src); err != nil && ctx.Err() == nil {
		log.Error("Initial source run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("Source poller stopping")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx, src); err != nil && ctx.Err() == nil {
				log.Error("Source run failed", "error", err)
			}
		}
	}
}

// RunOnce fetches src with retries and processes the result in batches
func (p *Pipeline) RunOnce(ctx context.Context, src Source) error {
	start := time.Now()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire semaphore: %w", err)
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	defer func() {
		duration := time.Since(start)
		metrics.RecordPipelineRun(src.Name(), duration)
		logger.Debug("Pipeline run completed",
			"source", src.Name(),
			"duration_ms", duration.Milliseconds(),
		)
	}()

	var incidents []models.Incident
	var err error
	for attempt := 0; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.cfg.RetryDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		incidents, err = src.Fetch(ctx)
		if err == nil {
			break
		}
		logger.Warn("Fetch attempt failed",
			"source", src.Name(),
			"attempt", attempt+1,
			"error", err,
		)
	}
	if err != nil {
		metrics.RecordIncidentProcessed(src.Name(), "fetch_error")
		return apperrors.PipelineError{
			Source: src.Name(),
			Stage:  "fetch",
			Err:    fmt.Errorf("failed after %d attempts: %w", p.cfg.RetryAttempts+1, err),
		}
	}

	if len(incidents) == 0 {
		logger.Debug("No incidents fetched", "source", src.Name())
		return nil
	}

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(incidents)
	}

	for i := 0; i < len(incidents); i += batchSize {
		end := min(i+batchSize, len(incidents))
		batch := incidents[i:end]
		if err := p.processBatch(ctx, src.Name(), batch); err != nil {
			logger.Error("Batch processing failed",
				"source", src.Name(),
				"batch_start", i,
				"batch_size", len(batch),
				"error", err,
			)
			metrics.RecordIncidentProcessed(src.Name(), "process_error")
			return apperrors.PipelineError{Source: src.Name(), Stage: "persist", Err: err}
		}
	}

	metrics.RecordIncidentProcessed(src.Name(), "success")
	logger.Info("Processed incidents", "source", src.Name(), "count", len(incidents))
	return nil
}

// processBatch enriches a batch and waits for the queue to persist it
func (p *Pipeline) processBatch(ctx context.Context, sourceName string, incidents []models.Incident) error {
	worst := -1
	for i := range incidents {
		inc := &incidents[i]

		if inc.Source == "" {
			inc.Source = sourceName
		}
		if inc.DetectedAt.IsZero() {
			inc.DetectedAt = time.Now().UTC()
		}
		if inc.ID == "" {
			key := inc.URL
			if key == "" {
				key = inc.Title + inc.PublishedAt.String()
			}
			inc.ID = utils.IncidentID(inc.Source, key)
		}

		p.classifier.Classify(inc)

		if err := p.geocoder.Geocode(inc); err != nil {
			logger.Warn("Geocoding failed", "incident_id", inc.ID, "error", err)
			inc.ClassificationConfidence *= 0.8
		}

		worst = max(worst, inc.Severity.Rank())
	}

	done := make(chan error, 1)
	p.queue.Add(uploadqueue.Item{
		Priority: batchPriority(worst),
		// the queue context outlives ctx so Drain can still persist the batch
		Execute: func(qctx context.Context) error {
			return p.store.UpsertIncidents(qctx, incidents)
		},
		OnComplete: func() { done <- nil },
		OnError:    func(err error) { done <- err },
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// batchPriority maps the worst severity in a batch to a queue priority;
// critica batches get 0 and run first
func batchPriority(worstRank int) int {
	return models.SeverityCritical.Rank() - worstRank
}

// IsRunning returns whether the pipeline is currently running
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}
