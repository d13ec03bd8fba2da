package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanisfaquir/weatherboard/internal/models"
)

// RecordFetcher is implemented by the sync layer. Declared here to avoid a
// circular dependency on the sync package.
type RecordFetcher interface {
	Fetch(ctx context.Context, resource string) ([]models.WeatherRecord, error)
}

// Warmer primes the cache by fetching the configured resources through the
// sync layer at startup, so the first dashboard load does not pay a remote
// round trip.
type Warmer struct {
	fetcher RecordFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer over the given fetcher.
func NewWarmer(fetcher RecordFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches each resource concurrently. Returns an aggregated error when
// any resource failed; the remaining resources are still warmed.
func (w *Warmer) Warm(ctx context.Context, resources []string) error {
	start := time.Now()
	var wg sync.WaitGroup
	errCh := make(chan error, len(resources))
	for _, res := range resources {
		res := res
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.Fetch(ctx, res); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", res, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("cache warming complete",
			zap.Int("resources", len(resources)),
			zap.Int("errors", len(errs)),
			zap.Duration("duration", time.Since(start)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval
// until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, resources []string, interval time.Duration) error {
	if err := w.Warm(ctx, resources); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, resources); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
