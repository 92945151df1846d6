package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/manuchak/detecta-core/config"
	"github.com/manuchak/detecta-core/internal/api"
	"github.com/manuchak/detecta-core/internal/billing"
	"github.com/manuchak/detecta-core/internal/classifier"
	"github.com/manuchak/detecta-core/internal/database"
	"github.com/manuchak/detecta-core/internal/geocoder"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/metrics"
	middlewares "github.com/manuchak/detecta-core/internal/middleware"
	"github.com/manuchak/detecta-core/internal/pipeline"
	"github.com/manuchak/detecta-core/internal/pricing"
	"github.com/manuchak/detecta-core/internal/ratelimit"
	"github.com/manuchak/detecta-core/internal/store"
	"github.com/manuchak/detecta-core/internal/threat"
	"github.com/manuchak/detecta-core/internal/uploadqueue"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the ingestion pipeline and the metrics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger.Info("Starting detecta",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	if err := metrics.Init(cfg.Metrics.Enabled); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close(context.Background())

	incidentStore := store.New(db)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = pricing.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable; continuing without cache and shared rate limits", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	prices := pricing.NewProvider(bandSource(db, redisClient, cfg.Pricing), cfg.Pricing.MaxKm)

	uploads := uploadqueue.New(uploadqueue.Options{
		MaxConcurrent:       cfg.Upload.MaxConcurrent,
		DelayBetweenUploads: cfg.Upload.DelayBetweenUploads,
	})

	deps := api.Deps{
		Store:     incidentStore,
		Incidents: threat.NewService(incidentStore, threat.NewScorer()),
		Pricing:   prices,
		Uploads:   uploads,
	}
	if invoicer := billing.NewService(cfg.Billing); invoicer != nil {
		deps.Invoicer = invoicer
	} else {
		logger.Info("STRIPE_SECRET_KEY not set; invoicing disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newRouter(cfg.Server, deps, redisClient),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Pipeline.Enabled {
		p := pipeline.New(incidentStore, classifier.New(), geocoder.New(), uploads, cfg.Pipeline)
		g.Go(func() error { return p.Run(gctx) })
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = newMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
		g.Go(func() error {
			logger.Info("Starting metrics server", "address", metricsSrv.Addr, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := uploads.Drain(shutdownCtx); err != nil {
			logger.Warn("Upload queue not drained", "error", err, "stats", uploads.Stats())
		}
		return nil
	})

	err = g.Wait()
	logger.Info("Server exited")
	return err
}

// bandSource picks Postgres when configured, fronted by Redis when available.
// A nil source makes the provider use the default bands.
func bandSource(db *database.DB, client *redis.Client, cfg config.PricingConfig) pricing.BandSource {
	if db == nil || !db.IsConfigured() {
		return nil
	}
	var src pricing.BandSource = pricing.NewPostgresBandSource(db)
	if client != nil {
		src = pricing.NewRedisBandCache(client, src, cfg.BandCacheTTL)
	}
	return src
}

func newRouter(cfg config.ServerConfig, deps api.Deps, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.ReadTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.CORS(cfg.AllowedOrigins))
	if redisClient != nil && cfg.RequestsPerMinute > 0 {
		r.Use(middlewares.RedisRateLimit(ratelimit.NewManager(redisClient, cfg.RequestsPerMinute)))
	} else {
		r.Use(middlewares.RateLimit(cfg.RequestsPerMinute))
	}

	api.NewHandler(deps, Version, BuildTime, GitCommit).RegisterRoutes(r)
	return r
}

func newMetricsServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
