package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"zone-mapper/internal/config"
	"zone-mapper/internal/geocode"
	"zone-mapper/internal/metrics"
	"zone-mapper/internal/pipeline"
	"zone-mapper/internal/repository"
	"zone-mapper/internal/tabular"
)

// Wire bundles the services shared by every entry point.
type Wire struct {
	Config   config.Config
	Metrics  *metrics.Collector
	Pipeline *pipeline.Pipeline

	pool *pgxpool.Pool
}

// NewWire constructs the dependency graph from cfg. reg may be nil to use the
// global Prometheus registry.
func NewWire(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*Wire, error) {
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("app: failed to register metrics: %w", err)
	}

	google, err := geocode.NewGoogle(cfg.Geocoder.APIKey, cfg.Geocoder.Region)
	if err != nil {
		return nil, fmt.Errorf("app: failed to create geocoder: %w", err)
	}

	w := &Wire{Config: cfg, Metrics: collector}

	batch := geocode.NewBatch(google, cfg.Geocoder.Delay, cfg.Geocoder.MaxRetries).WithMetrics(collector)
	if cfg.Cache.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Cache.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: cannot connect to cache db: %w", err)
		}
		cache := repository.NewGeocodeCache(pool)
		if err := cache.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("app: failed to prepare cache: %w", err)
		}
		w.pool = pool
		batch.WithCache(cache)
		log.Info().Msg("geocode cache enabled")
	}

	w.Pipeline = pipeline.New(batch, tabular.LoaderOptions{
		IDColumn:  cfg.Input.IDColumn,
		SkipIDs:   cfg.Input.SkipIDs,
		LatColumn: cfg.Input.LatColumn,
		LngColumn: cfg.Input.LngColumn,
	}, collector)
	return w, nil
}

// Close releases the cache connection pool, if any.
func (w *Wire) Close() {
	if w.pool != nil {
		w.pool.Close()
	}
}
