package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miradorstack/fieldops/internal/cache"
	"github.com/miradorstack/fieldops/internal/config"
	"github.com/miradorstack/fieldops/internal/engine"
	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/repo"
	"github.com/miradorstack/fieldops/internal/services"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	cache     cache.Provider
	loader    *repo.Loader
	triage    *services.TriageService
	assistant *services.AssistantService
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	source, err := a.openSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.cache = a.openCache()
	a.loader = repo.NewLoader(source, a.cache, cfg.Cache.TTL, logger)

	rules, err := engine.LoadActionRules(cfg.Rules.Path, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load action rules: %w", err)
	}

	searcher, err := a.openSearcher()
	if err != nil {
		a.Close()
		return nil, err
	}

	var sessions cache.Provider
	if cfg.Cache.Backend != "none" {
		sessions = a.cache
	}

	a.triage = services.NewTriageService(logger, a.loader, rules)
	a.assistant = services.NewAssistantService(logger, a.loader, searcher, sessions, services.AssistantOptions{
		HistorySize: cfg.Assistant.HistorySize,
		SessionTTL:  cfg.Assistant.SessionTTL,
	})
	return a, nil
}

func (a *app) openSource(ctx context.Context) (repo.Source, error) {
	wh := a.cfg.Warehouse
	if wh.DSN == "" {
		store := repo.NewFixtureDirStore(a.cfg.Fixtures.Dir, a.logger)
		a.logger.Info("using fixture store", slog.String("source", store.Name()))
		return store, nil
	}
	db, err := repo.OpenDB(wh.Driver, wh.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := repo.PingDB(ctx, db, wh.QueryTimeout); err != nil {
		a.logger.Warn("warehouse unreachable, loads will degrade until it recovers",
			slog.String("driver", wh.Driver), slog.Any("error", err))
	}
	store, err := repo.NewSQLStore(db, wh.Driver, repo.Tables{
		Faults:     wh.FaultTable,
		Triage:     wh.TriageTable,
		Procedures: wh.ProcedureTable,
	}, wh.RowLimit, wh.QueryTimeout, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("using warehouse", slog.String("driver", wh.Driver), slog.String("faults", wh.FaultTable))
	return store, nil
}

func (a *app) openCache() cache.Provider {
	cc := a.cfg.Cache
	switch cc.Backend {
	case "none":
		return cache.NoopProvider{}
	case "redis":
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cc.Addr,
			Username:     cc.Username,
			Password:     cc.Password,
			DB:           cc.DB,
			DialTimeout:  cc.DialTimeout,
			ReadTimeout:  cc.ReadTimeout,
			WriteTimeout: cc.WriteTimeout,
			MaxRetries:   cc.MaxRetries,
			TLS:          cc.TLS,
		})
		if err != nil {
			a.logger.Warn("redis cache unavailable, using process memory", slog.Any("error", err))
			return cache.NewMemoryProvider()
		}
		a.closers = append(a.closers, provider.Close)
		return provider
	}
	return cache.NewMemoryProvider()
}

func (a *app) openSearcher() (repo.Searcher, error) {
	sc := a.cfg.Search
	if len(sc.Addresses) == 0 {
		return repo.NewLocalSearcher(func(ctx context.Context) ([]models.ProcedureDocument, error) {
			ds, err := a.loader.Load(ctx)
			return ds.Procedures, err
		}), nil
	}
	client, err := repo.NewOpenSearchClient(repo.OpenSearchConfig{
		Addresses:          sc.Addresses,
		Username:           sc.Username,
		Password:           sc.Password,
		Index:              sc.Index,
		Timeout:            sc.Timeout,
		InsecureSkipVerify: sc.InsecureSkipVerify,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}
	return client, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", slog.Any("error", err))
		}
	}
	a.closers = nil
}
