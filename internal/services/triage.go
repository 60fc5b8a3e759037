package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/fieldops/internal/engine"
	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/utils"
)

// latencyLogEvery is how many dashboards pass between latency log lines.
const latencyLogEvery = 20

var (
	// ErrFaultNotFound is returned when a fault id is not in the loaded dataset.
	ErrFaultNotFound = errors.New("fault not found")
	// ErrDataUnavailable is returned by single-fault lookups when the fault
	// table could not be read.
	ErrDataUnavailable = errors.New("fault data unavailable")
)

func dataUnavailable(op string, err error) error {
	return utils.NewAppError(op, "fault data unavailable", fmt.Errorf("%w: %w", ErrDataUnavailable, err))
}

// DatasetLoader supplies the current dataset.
type DatasetLoader interface {
	Load(ctx context.Context) (models.Dataset, error)
}

// TriageService computes the manager dashboard and engineer work lists.
type TriageService struct {
	logger    *slog.Logger
	loader    DatasetLoader
	rules     *engine.ActionRules
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewTriageService constructs the triage facade. rules may be nil.
func NewTriageService(logger *slog.Logger, loader DatasetLoader, rules *engine.ActionRules) *TriageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriageService{
		logger:    logger,
		loader:    loader,
		rules:     rules,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// load returns enriched faults and the dataset. A failed load still yields
// an empty dataset with warnings, so the caller can render it; the error is
// only logged.
func (s *TriageService) load(ctx context.Context) (models.Dataset, []models.EnrichedFault, time.Time) {
	ds, err := s.loader.Load(ctx)
	if err != nil {
		s.logger.Warn("dashboard rendered from degraded dataset", slog.Any("error", err))
	}
	now := s.now()
	return ds, engine.Enrich(ds.Faults, now), now
}

// Dashboard computes every dashboard panel for the filtered faults. Filter
// options always cover the whole dataset. Without dates the last
// engine.DefaultWindowDays days are shown unless filter.AllTime is set.
func (s *TriageService) Dashboard(ctx context.Context, filter models.FaultFilter) (models.Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return models.Dashboard{}, err
	}
	start := time.Now()
	ds, enriched, now := s.load(ctx)

	if !filter.AllTime && filter.Start.IsZero() && filter.End.IsZero() {
		window := engine.DefaultFilter(now)
		filter.Start, filter.End = window.Start, window.End
	}
	filtered := engine.ApplyFilter(enriched, filter)

	dashboard := models.Dashboard{
		GeneratedAt:      now,
		Filter:           filter,
		KPIs:             engine.Summarize(filtered),
		Alerts:           engine.CriticalAlerts(filtered, s.rules),
		CategoryImpact:   engine.CategoryImpact(filtered),
		PriorityTimeline: engine.PriorityTimeline(filtered),
		LocationImpact:   engine.LocationImpact(filtered),
		Queue:            engine.TriageQueue(filtered),
		Options:          engine.Options(enriched),
		Warnings:         ds.Warnings,
	}
	if dashboard.Alerts == nil {
		dashboard.Alerts = []models.Alert{}
	}

	if n := s.latencies.Observe(time.Since(start)); n%latencyLogEvery == 0 {
		summary := s.latencies.Summary()
		s.logger.Info("dashboard latency",
			slog.Duration("p50", summary.P50),
			slog.Duration("p95", summary.P95),
			slog.Duration("max", summary.Max),
			slog.Int("requests", summary.Total),
		)
	}
	s.logger.Debug("dashboard computed",
		slog.Int("faults", len(enriched)),
		slog.Int("filtered", len(filtered)),
		slog.Int("alerts", len(dashboard.Alerts)),
	)
	return dashboard, nil
}

// Assigned returns the field engineer's work list: the first limit active
// faults in load order.
func (s *TriageService) Assigned(ctx context.Context, limit int) ([]models.AssignedFault, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ds, enriched, _ := s.load(ctx)
	assigned := engine.AssignedFaults(enriched, limit)
	if assigned == nil {
		assigned = []models.AssignedFault{}
	}
	return assigned, ds.Warnings, nil
}

// Fault returns one enriched fault by id.
func (s *TriageService) Fault(ctx context.Context, id string) (models.EnrichedFault, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedFault{}, err
	}
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return models.EnrichedFault{}, dataUnavailable("fault lookup", err)
	}
	for _, f := range engine.Enrich(ds.Faults, s.now()) {
		if f.Fault.ID == id {
			return f, nil
		}
	}
	return models.EnrichedFault{}, utils.NewAppError("fault lookup", "fault "+id+" not found", ErrFaultNotFound)
}
