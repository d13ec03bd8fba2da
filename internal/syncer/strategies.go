package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/yanisfaquir/weatherboard/internal/models"
	"github.com/yanisfaquir/weatherboard/internal/observability"
)

// outcome tags a read strategy result so the precedence rules stay auditable
// instead of living in nested conditionals.
type outcome int

const (
	// outcomeMiss means the strategy produced nothing; try the next one.
	outcomeMiss outcome = iota
	// outcomeHit means the strategy produced a result.
	outcomeHit
	// outcomeTerminal means the final fallback produced the result; there is
	// no next strategy.
	outcomeTerminal
)

type readStrategy struct {
	name string
	run  func(ctx context.Context) ([]models.WeatherRecord, outcome)
}

// readStrategies is the ordered fallback chain for non-collection reads:
// cache, then remote (budget and latch permitting), then local storage. The
// local strategy is terminal; a read can never fail.
func (s *Syncer) readStrategies(resource string) []readStrategy {
	return []readStrategy{
		{
			name: "cache",
			run: func(ctx context.Context) ([]models.WeatherRecord, outcome) {
				records, ok := s.cache.Get(cacheKey(resource))
				if !ok {
					return nil, outcomeMiss
				}
				observability.CacheHitsTotal.WithLabelValues(resource).Inc()
				s.logger.Debug("cache hit", zap.String("resource", resource))
				return records, outcomeHit
			},
		},
		{
			name: "remote",
			run: func(ctx context.Context) ([]models.WeatherRecord, outcome) {
				if s.useLocalOnly() {
					return nil, outcomeMiss
				}
				records, err := s.listRemote(ctx, resource)
				if err != nil {
					s.latchOffline(err)
					return nil, outcomeMiss
				}
				s.cache.Set(cacheKey(resource), records, s.cacheTTL)
				s.kv.Set(backupKey(resource), records)
				return records, outcomeHit
			},
		},
		{
			name: "local",
			run: func(ctx context.Context) ([]models.WeatherRecord, outcome) {
				observability.LocalFallbacksTotal.WithLabelValues("read").Inc()
				return s.readLocal(resource), outcomeTerminal
			},
		},
	}
}

// readLocal serves a resource from local storage: the locally-authored array
// first, then the last remote backup, then first-run seed data so the UI is
// never empty.
func (s *Syncer) readLocal(resource string) []models.WeatherRecord {
	if records := s.localRecords(resource); len(records) > 0 {
		return records
	}
	var backup []models.WeatherRecord
	if s.kv.Get(backupKey(resource), &backup) && len(backup) > 0 {
		return validRecords(backup)
	}
	if resource == ResourceWeatherData {
		return s.seedFirstRun()
	}
	return []models.WeatherRecord{}
}

// seedFirstRun writes deterministic seed records to empty local storage and
// returns them. Only the weather collection is seeded; by policy, budget
// exhaustion and offline mode otherwise serve whatever local data exists.
func (s *Syncer) seedFirstRun() []models.WeatherRecord {
	now := s.now()
	seed := []models.WeatherRecord{
		{
			ID:              "mock_1",
			City:            "Porto",
			Temperature:     18,
			TemperatureUnit: models.TemperatureCelsius,
			IsRaining:       false,
			Date:            now,
			NetworkPower:    1,
			Altitude:        95,
			AltitudeUnit:    models.AltitudeMeters,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:              "mock_2",
			City:            "Lisboa",
			Temperature:     22,
			TemperatureUnit: models.TemperatureCelsius,
			IsRaining:       true,
			Date:            now,
			NetworkPower:    3,
			Altitude:        111,
			AltitudeUnit:    models.AltitudeMeters,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	s.kv.Set(localKey(ResourceWeatherData), seed)
	observability.MockSeedsTotal.Inc()
	s.logger.Info("seeded first-run weather data", zap.Int("records", len(seed)))
	return seed
}
