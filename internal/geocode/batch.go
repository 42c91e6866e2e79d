package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"zone-mapper/internal/metrics"
	"zone-mapper/internal/models"
)

type ProgressCallback func(current, total int, msg string)
type LoggerCallback func(msg string)

// DefaultDelay is the pause between two provider calls.
const DefaultDelay = 200 * time.Millisecond

// Cache stores resolved addresses between runs.
type Cache interface {
	Lookup(ctx context.Context, address string) (models.Coordinate, bool, error)
	Store(ctx context.Context, address string, loc models.Coordinate) error
}

// Batch geocodes addresses one after the other, at most one provider call
// per delay, retrying transient failures with exponential backoff. Cache
// hits are answered without waiting.
type Batch struct {
	geocoder   Geocoder
	cache      Cache
	limiter    *rate.Limiter
	maxRetries uint64
	newBackOff func() backoff.BackOff
	metrics    *metrics.Collector
}

func NewBatch(g Geocoder, delay time.Duration, maxRetries int) *Batch {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Batch{
		geocoder:   g,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// WithMetrics records every lookup outcome on c.
func (b *Batch) WithMetrics(c *metrics.Collector) *Batch {
	b.metrics = c
	return b
}

// WithCache consults c before the provider and fills it after a successful
// lookup. Cache failures are logged and otherwise ignored.
func (b *Batch) WithCache(c Cache) *Batch {
	b.cache = c
	return b
}

// Geocode resolves one address from the cache, or from the provider after
// waiting for the rate limiter.
func (b *Batch) Geocode(ctx context.Context, address string) (models.Coordinate, error) {
	if b.cache != nil {
		loc, ok, err := b.cache.Lookup(ctx, address)
		if err != nil {
			log.Warn().Err(err).Str("address", address).Msg("geocode cache lookup failed")
		}
		if ok {
			b.metrics.Geocode("cached")
			return loc, nil
		}
	}

	loc, err := b.lookup(ctx, address)
	if err != nil {
		return models.Coordinate{}, err
	}

	if b.cache != nil {
		if err := b.cache.Store(ctx, address, loc); err != nil {
			log.Warn().Err(err).Str("address", address).Msg("geocode cache store failed")
		}
	}
	return loc, nil
}

func (b *Batch) lookup(ctx context.Context, address string) (models.Coordinate, error) {
	var loc models.Coordinate

	op := func() error {
		if err := b.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		loc, err = b.geocoder.Geocode(ctx, address)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRejected) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b.newBackOff(), b.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, ErrNotFound) {
			b.metrics.Geocode("not_found")
		} else {
			b.metrics.Geocode("error")
		}
		return models.Coordinate{}, err
	}
	b.metrics.Geocode("ok")
	return loc, nil
}

// Families fills Loc on every family that has none. A family whose address
// cannot be resolved keeps a nil Loc and the run goes on; only context
// cancellation stops it. Returns how many families were resolved.
func (b *Batch) Families(ctx context.Context, families []models.Family, onProgress ProgressCallback, logger LoggerCallback) (int, error) {
	logf := func(format string, args ...any) {
		if logger != nil {
			logger(fmt.Sprintf(format, args...))
		}
	}

	total := len(families)
	logf("Geocoding %d families...", total)

	resolved := 0
	for i := range families {
		if i%10 == 0 {
			logf("  Progress: %d/%d", i, total)
		}
		if onProgress != nil {
			onProgress(i, total, "")
		}

		f := &families[i]
		if f.Geocoded() {
			resolved++
			continue
		}

		loc, err := b.Geocode(ctx, f.Address)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return resolved, ctxErr
			}
			if errors.Is(err, ErrNotFound) {
				logf("  Could not geocode %s", f.ID)
			} else {
				logf("  Error for %s: %v", f.ID, err)
			}
			continue
		}
		f.Loc = &loc
		resolved++
	}

	if onProgress != nil {
		onProgress(total, total, "")
	}
	logf("  Geocoding finished: %d/%d resolved", resolved, total)
	return resolved, nil
}
