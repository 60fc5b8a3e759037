package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/miradorstack/fieldops/internal/cache"
	"github.com/miradorstack/fieldops/internal/metrics"
	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/utils"
)

// DatasetCacheKey is the single cache entry holding the loaded dataset.
const DatasetCacheKey = "fieldops:dataset"

// Loader memoises warehouse reads behind an explicit cache with a TTL.
// Concurrent misses share one load. Failed loads are never cached.
type Loader struct {
	source   Source
	cache    cache.Provider
	ttl      time.Duration
	group    singleflight.Group
	logger   *slog.Logger
	now      func() time.Time
	observer func(error)
}

// NewLoader wires a source to a cache. A zero ttl disables caching.
func NewLoader(source Source, cacheProvider cache.Provider, ttl time.Duration, logger *slog.Logger) *Loader {
	if cacheProvider == nil || ttl <= 0 {
		cacheProvider = cache.NoopProvider{}
		ttl = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, cache: cacheProvider, ttl: ttl, logger: logger, now: time.Now}
}

// OnLoad registers fn to run after every warehouse load with its error.
func (l *Loader) OnLoad(fn func(error)) {
	l.observer = fn
}

// Load returns the dataset. When the fault table cannot be read it returns
// an empty dataset carrying a warning together with the error; the dataset
// is always safe to render. The result is shared and must not be mutated.
func (l *Loader) Load(ctx context.Context) (models.Dataset, error) {
	if l.ttl > 0 {
		if ds, ok := l.cached(ctx); ok {
			metrics.ObserveCache(true)
			return ds, nil
		}
		metrics.ObserveCache(false)
	}

	type outcome struct {
		ds  models.Dataset
		err error
	}
	// The read is shared by every waiting caller, so one caller going away
	// must not fail it for the rest. Sources bound each query themselves.
	v, _, _ := l.group.Do(DatasetCacheKey, func() (any, error) {
		ds, err := l.fetch(context.WithoutCancel(ctx))
		return outcome{ds: ds, err: err}, nil
	})
	out := v.(outcome)
	return out.ds, out.err
}

// Invalidate drops the cached dataset so the next Load reads the warehouse.
func (l *Loader) Invalidate(ctx context.Context) error {
	if err := l.cache.Del(ctx, DatasetCacheKey); err != nil {
		return utils.NewAppError("invalidate dataset", "cache unavailable", err)
	}
	l.logger.Info("dataset cache invalidated")
	return nil
}

func (l *Loader) cached(ctx context.Context) (models.Dataset, bool) {
	ds, err := cache.GetJSON[models.Dataset](ctx, l.cache, DatasetCacheKey)
	switch {
	case err == nil:
		return ds, true
	case errors.Is(err, cache.ErrCorruptEntry):
		l.logger.Warn("dataset cache entry corrupt", slog.Any("error", err))
	case !errors.Is(err, cache.ErrCacheMiss):
		l.logger.Warn("dataset cache read failed", slog.Any("error", err))
	}
	return models.Dataset{}, false
}

func (l *Loader) fetch(ctx context.Context) (models.Dataset, error) {
	start := l.now()
	ds := models.Dataset{
		Faults:     []models.FaultRecord{},
		Procedures: []models.ProcedureDocument{},
		Source:     l.source.Name(),
		LoadedAt:   start,
	}

	faults, err := l.source.LoadFaults(ctx)
	if err != nil {
		l.logger.Error("fault data unavailable", slog.String("source", ds.Source), slog.Any("error", err))
		ds.Warnings = append(ds.Warnings, "Fault data unavailable: "+utils.UserMessage(err))
		metrics.ObserveDatasetLoad(ds.Source, l.now().Sub(start), metrics.OutcomeError)
		l.notify(err)
		return ds, err
	}
	if faults != nil {
		ds.Faults = faults
	}

	if triage, ok := l.source.(TriageSource); ok {
		scores, err := triage.LoadTriage(ctx)
		if err != nil {
			l.logger.Info("ML predictions unavailable, using original data", slog.Any("error", err))
			ds.Warnings = append(ds.Warnings, "ML predictions unavailable, using original data")
		} else {
			mergeTriage(ds.Faults, scores)
		}
	}

	docs, err := l.source.LoadProcedures(ctx)
	if err != nil {
		l.logger.Info("procedure documents unavailable", slog.Any("error", err))
		ds.Warnings = append(ds.Warnings, "Procedure documents not available")
	} else if docs != nil {
		ds.Procedures = docs
	}

	metrics.ObserveDatasetLoad(ds.Source, l.now().Sub(start), metrics.OutcomeSuccess)
	l.logger.Info("dataset loaded",
		slog.String("source", ds.Source),
		slog.Int("faults", len(ds.Faults)),
		slog.Int("procedures", len(ds.Procedures)),
		slog.Duration("elapsed", l.now().Sub(start)),
	)

	if l.ttl > 0 {
		if err := cache.SetJSON(ctx, l.cache, DatasetCacheKey, ds, l.ttl); err != nil {
			l.logger.Warn("dataset cache write failed", slog.Any("error", err))
		}
	}
	l.notify(nil)
	return ds, nil
}

func (l *Loader) notify(err error) {
	if l.observer != nil {
		l.observer(err)
	}
}
