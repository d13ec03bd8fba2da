package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanisfaquir/weatherboard/internal/cache"
	"github.com/yanisfaquir/weatherboard/internal/kvstore"
	"github.com/yanisfaquir/weatherboard/internal/models"
	"github.com/yanisfaquir/weatherboard/internal/observability"
	"github.com/yanisfaquir/weatherboard/internal/remote"
	"github.com/yanisfaquir/weatherboard/internal/traffic"
)

// Remote resource names on the data store.
const (
	ResourceWeatherData = "weatherData"
	ResourceCities      = "cities"
)

// Persisted state keys.
const (
	keyRequestCount = "api_request_count"
	keyOfflineMode  = "offline_mode"
)

// DefaultCeiling is the request budget applied when the config leaves it unset.
const DefaultCeiling = 100

// defaultWarnPct is the budget percentage past which every remote call logs a warning.
const defaultWarnPct = 80

// ErrStorageUnavailable is returned from the write path when the remote store
// is unreachable and local storage cannot take the record either.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// Options tunes a Syncer. Zero values select the defaults.
type Options struct {
	Ceiling         int           // request budget ceiling (default 100)
	WarnPct         int           // warning threshold as percent of ceiling (default 80)
	CacheTTL        time.Duration // TTL for populated cache entries (default cache.DefaultTTL)
	Coalesce        bool          // coalesce identical in-flight remote list calls
	CoalesceTimeout time.Duration // max wait for a coalesced result
}

// Stats is the introspection snapshot exposed on /api/sync/stats.
type Stats struct {
	RequestCount      int         `json:"requestCount"`
	RemainingRequests int         `json:"remainingRequests"`
	Ceiling           int         `json:"ceiling"`
	OfflineMode       bool        `json:"isOfflineMode"`
	Cache             cache.Stats `json:"cacheStats"`
}

// Syncer presents a uniform fetch/create contract over the remote data store
// while hiding three decision axes: budget availability, the offline latch,
// and remote failure. Reads never fail; every failure path substitutes local
// data. The budget counter and offline flag are guarded by one mutex and
// persisted inside the same critical section, so concurrent requests cannot
// lose an increment. The local record arrays have their own lock: the
// read-append-persist cycle is atomic, so concurrent local creates cannot
// clobber each other.
type Syncer struct {
	kv       kvstore.Store
	cache    cache.Store
	client   remote.Client
	logger   *zap.Logger
	ceiling  int
	warnPct  int
	cacheTTL time.Duration
	coalesce *listCoalescer

	mu           sync.Mutex
	requestCount int
	offline      bool

	localMu sync.Mutex // guards the local_<resource> array read-modify-write

	now func() time.Time // overridable in tests
}

// New constructs a Syncer, restoring the budget counter and offline latch
// from the key-value store so they survive restarts.
func New(kv kvstore.Store, cacheStore cache.Store, client remote.Client, logger *zap.Logger, opts Options) *Syncer {
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultCeiling
	}
	if opts.WarnPct <= 0 || opts.WarnPct > 100 {
		opts.WarnPct = defaultWarnPct
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	s := &Syncer{
		kv:       kv,
		cache:    cacheStore,
		client:   client,
		logger:   logger,
		ceiling:  opts.Ceiling,
		warnPct:  opts.WarnPct,
		cacheTTL: opts.CacheTTL,
		now:      time.Now,
	}
	if opts.Coalesce {
		timeout := opts.CoalesceTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		s.coalesce = newListCoalescer(timeout)
	}

	kv.Get(keyRequestCount, &s.requestCount)
	kv.Get(keyOfflineMode, &s.offline)
	observability.RequestBudgetUsed.Set(float64(s.requestCount))
	if s.offline {
		observability.OfflineMode.Set(1)
		logger.Info("offline mode restored, using local storage fallback")
	}
	logger.Info("request budget restored",
		zap.Int("used", s.requestCount),
		zap.Int("ceiling", s.ceiling))
	return s
}

// Fetch returns the records of a resource. The weather collection always goes
// through the combined read so locally-authored records are never hidden
// behind a successful remote read; other resources walk the
// cache -> remote -> local strategy chain.
func (s *Syncer) Fetch(ctx context.Context, resource string) ([]models.WeatherRecord, error) {
	if resource == ResourceWeatherData {
		return s.fetchCombined(ctx), nil
	}
	for _, st := range s.readStrategies(resource) {
		records, oc := st.run(ctx)
		if oc != outcomeMiss {
			return records, nil
		}
	}
	// The strategy chain ends in a terminal local read; not reached.
	return nil, nil
}

// fetchCombined implements the combined-read algorithm for the weather
// collection: local records are read unconditionally and the remote list is
// prepended on success. The concatenation does not deduplicate by id; a
// record present both remotely and locally after a reconnect appears twice.
// That ambiguity is a product decision, not resolved here.
func (s *Syncer) fetchCombined(ctx context.Context) []models.WeatherRecord {
	local := s.localRecords(ResourceWeatherData)
	if s.useLocalOnly() {
		observability.LocalFallbacksTotal.WithLabelValues("read").Inc()
		if len(local) == 0 {
			local = s.seedFirstRun()
		}
		s.logger.Debug("combined read served locally", zap.Int("records", len(local)))
		return local
	}

	remoteRecords, err := s.listRemote(ctx, ResourceWeatherData)
	if err != nil {
		s.latchOffline(err)
		observability.LocalFallbacksTotal.WithLabelValues("read").Inc()
		return local
	}

	s.cache.Set(cacheKey(ResourceWeatherData), remoteRecords, s.cacheTTL)
	s.kv.Set(backupKey(ResourceWeatherData), remoteRecords)

	combined := make([]models.WeatherRecord, 0, len(remoteRecords)+len(local))
	combined = append(combined, remoteRecords...)
	combined = append(combined, local...)
	return combined
}

// Create stores a new record. Remote when the budget allows and the latch is
// clear; local otherwise or on remote failure. The write is never lost, only
// redirected; the sole error is storage being unavailable on the local path.
func (s *Syncer) Create(ctx context.Context, resource string, rec models.WeatherRecord) (models.WeatherRecord, error) {
	if err := rec.Validate(); err != nil {
		return models.WeatherRecord{}, err
	}
	if s.useLocalOnly() {
		observability.LocalFallbacksTotal.WithLabelValues("write").Inc()
		return s.createLocal(resource, rec)
	}

	created, err := s.client.Create(ctx, resource, rec)
	if err != nil {
		traffic.RecordError()
		s.latchOffline(err)
		observability.LocalFallbacksTotal.WithLabelValues("write").Inc()
		return s.createLocal(resource, rec)
	}
	traffic.RecordSuccess()
	s.consumeBudget()
	s.invalidateResource(resource)
	// Backup copy so a later offline combined read still surfaces the record.
	s.appendLocal(resource, created)
	return created, nil
}

// EnableOnlineMode clears the offline latch. The next operation attempts the
// network again, budget permitting.
func (s *Syncer) EnableOnlineMode() {
	s.mu.Lock()
	s.offline = false
	s.kv.Set(keyOfflineMode, false)
	s.mu.Unlock()
	observability.OfflineMode.Set(0)
	s.logger.Info("online mode enabled")
}

// ResetBudget resets the request counter to zero. The only way the counter
// ever decreases.
func (s *Syncer) ResetBudget() {
	s.mu.Lock()
	s.requestCount = 0
	s.kv.Set(keyRequestCount, 0)
	s.mu.Unlock()
	observability.RequestBudgetUsed.Set(0)
	s.logger.Info("request budget reset")
}

// ClearLocalData removes the locally-authored record arrays. Taken under
// localMu so an in-flight append cannot resurrect a cleared array.
func (s *Syncer) ClearLocalData() {
	s.localMu.Lock()
	s.kv.Remove(localKey(ResourceWeatherData))
	s.kv.Remove(localKey(ResourceCities))
	s.localMu.Unlock()
	s.logger.Info("local data cleared")
}

// Offline reports whether the offline latch is set.
func (s *Syncer) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// BudgetExhausted reports whether the counter has reached the ceiling.
func (s *Syncer) BudgetExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount >= s.ceiling
}

// StorageAvailable reports whether the local store can take writes.
func (s *Syncer) StorageAvailable() bool {
	return s.kv.Available()
}

// Stats returns the current budget, latch, and cache snapshot.
func (s *Syncer) Stats() Stats {
	s.mu.Lock()
	count := s.requestCount
	offline := s.offline
	s.mu.Unlock()
	remaining := s.ceiling - count
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		RequestCount:      count,
		RemainingRequests: remaining,
		Ceiling:           s.ceiling,
		OfflineMode:       offline,
		Cache:             s.cache.Stats(),
	}
}

// useLocalOnly reports whether operations must skip the network entirely.
func (s *Syncer) useLocalOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline || s.requestCount >= s.ceiling
}

// listRemote performs the remote list, recording the outcome and consuming
// budget on success. With coalescing enabled, concurrent identical calls
// share one remote round trip and one budget increment.
func (s *Syncer) listRemote(ctx context.Context, resource string) ([]models.WeatherRecord, error) {
	do := func() ([]models.WeatherRecord, error) {
		records, err := s.client.List(ctx, resource)
		if err != nil {
			traffic.RecordError()
			return nil, err
		}
		traffic.RecordSuccess()
		s.consumeBudget()
		return records, nil
	}
	if s.coalesce != nil {
		return s.coalesce.GetOrDo(ctx, cacheKey(resource), do)
	}
	return do()
}

// consumeBudget increments the counter and persists it without releasing the
// lock in between. Crossing the warning threshold logs but never blocks the
// call.
func (s *Syncer) consumeBudget() {
	s.mu.Lock()
	s.requestCount++
	count := s.requestCount
	s.kv.Set(keyRequestCount, count)
	s.mu.Unlock()

	observability.RequestBudgetUsed.Set(float64(count))
	if count*100 >= s.ceiling*s.warnPct {
		observability.BudgetWarningsTotal.Inc()
		s.logger.Warn("request budget nearing ceiling",
			zap.Int("used", count),
			zap.Int("ceiling", s.ceiling))
	}
}

// latchOffline sets the one-way offline latch. Stays set until
// EnableOnlineMode.
func (s *Syncer) latchOffline(err error) {
	s.mu.Lock()
	already := s.offline
	if !already {
		s.offline = true
		s.kv.Set(keyOfflineMode, true)
	}
	s.mu.Unlock()
	if !already {
		observability.OfflineMode.Set(1)
		s.logger.Warn("remote call failed, offline mode latched", zap.Error(err))
	}
}

// createLocal appends the record to the local array with a synthetic id,
// stamped timestamps, and the locally-authored marker.
func (s *Syncer) createLocal(resource string, rec models.WeatherRecord) (models.WeatherRecord, error) {
	if !s.kv.Available() {
		return models.WeatherRecord{}, ErrStorageUnavailable
	}
	now := s.now()
	rec.ID = newLocalID(now)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Local = true
	if rec.Date.IsZero() {
		rec.Date = now
	}
	s.appendLocal(resource, rec)
	s.invalidateResource(resource)
	s.logger.Debug("record stored locally", zap.String("id", rec.ID), zap.String("resource", resource))
	return rec, nil
}

// appendLocal reads, extends, and rewrites the local array under localMu so
// a concurrent append cannot overwrite records already reported created.
func (s *Syncer) appendLocal(resource string, rec models.WeatherRecord) {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	existing := s.localRecords(resource)
	s.kv.Set(localKey(resource), append(existing, rec))
}

// localRecords reads the locally persisted array for a resource. Records that
// fail validation read as absent rather than propagating malformed objects.
func (s *Syncer) localRecords(resource string) []models.WeatherRecord {
	var records []models.WeatherRecord
	if !s.kv.Get(localKey(resource), &records) {
		return nil
	}
	return validRecords(records)
}

func validRecords(records []models.WeatherRecord) []models.WeatherRecord {
	out := records[:0]
	for _, r := range records {
		if r.Validate() == nil {
			out = append(out, r)
		}
	}
	return out
}

// invalidateResource purges cache entries for a resource by prefix match on
// the normalized resource name, tolerant of historical key-shape drift
// (weatherData vs weather-data).
func (s *Syncer) invalidateResource(resource string) {
	want := normalizeResource(resource)
	for _, key := range s.cache.Stats().Keys {
		got := normalizeResource(strings.TrimPrefix(key, "GET_"))
		if strings.HasPrefix(got, want) {
			s.cache.Delete(key)
		}
	}
}

func normalizeResource(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

func localKey(resource string) string  { return "local_" + resource }
func backupKey(resource string) string { return "remote_" + resource }
func cacheKey(resource string) string  { return "GET_" + resource }

// newLocalID synthesizes an offline record id in the shape
// local_<timestamp>_<random>.
func newLocalID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("local_%d_%s", now.UnixMilli(), random)
}
