package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nicetab/api/internal/browser"
	"nicetab/api/internal/config"
	"nicetab/api/internal/history"
	"nicetab/api/internal/kv"
	"nicetab/api/internal/model"
	"nicetab/api/internal/notify"
	"nicetab/api/internal/recycle"
	"nicetab/api/internal/search"
	"nicetab/api/internal/settings"
	"nicetab/api/internal/syncer"
	"nicetab/api/internal/syncer/gist"
	"nicetab/api/internal/syncer/webdav"
	"nicetab/api/internal/tree"
)

// App is the wired service plus the long-running parts the binaries drive.
type App struct {
	Service   *Service
	Hub       *notify.Hub
	Scheduler *syncer.Scheduler

	closers []func() error
}

// Close releases everything Build opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func openStore(ctx context.Context, cfg config.Config) (kv.Store, *redis.Client, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return kv.NewMemory(), nil, nil
	case config.StorePostgres:
		store, err := kv.OpenPostgres(ctx, cfg.DatabaseURL)
		return store, nil, err
	case config.StoreRedis:
		store, err := kv.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Client(), nil
	default:
		store, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		return store, nil, err
	}
}

// Build opens the configured store and wires every component.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{}
	raw, redisClient, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	a.onClose(raw.Close)
	store := kv.Namespace(raw, cfg.Namespace)

	settingsStore := settings.New(store)
	treeStore := tree.New(store, settingsStore, logger)
	bin := recycle.New(store, treeStore, logger)
	treeStore.SetDiscarder(bin)

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey, logger)
		a.onClose(func() error { meili.Close(); return nil })
	}
	searchService := search.NewService(meili, logger)
	treeStore.OnChange(func(_ context.Context, tags []model.Tag) { searchService.Reindex(tags) })

	var tabs TabSource
	if strings.TrimSpace(cfg.DevToolsURL) != "" {
		devtools := browser.NewDevTools(browser.Options{RemoteURL: cfg.DevToolsURL, GroupByHost: cfg.GroupByHost})
		treeStore.SetGroupTitleResolver(devtools)
		tabs = devtools
	}

	hub := notify.NewHub(logger)
	a.Hub = hub
	a.onClose(func() error { hub.Close(); return nil })
	var notifier syncer.Notifier = hub
	if redisClient == nil && strings.TrimSpace(cfg.RedisURL) != "" {
		events, err := kv.NewRedisStore(cfg.RedisURL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect event bus: %w", err)
		}
		a.onClose(events.Close)
		redisClient = events.Client()
	}
	if redisClient != nil {
		publisher := notify.NewRedisPublisher(redisClient, cfg.EventsChannel, logger)
		stop, err := publisher.Subscribe(ctx, func(e syncer.Event) {
			if err := hub.Publish(context.Background(), e); err != nil {
				logger.Warn().Err(err).Msg("relay event")
			}
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.onClose(stop)
		notifier = publisher
	}

	svc := &Service{
		kv:            store,
		tree:          treeStore,
		bin:           bin,
		settings:      settingsStore,
		search:        searchService,
		history:       history.New(historyDir(cfg), "NiceTab"),
		tabs:          tabs,
		logger:        logger,
		registry:      syncer.NewRegistry(),
		gistConfigs:   gist.NewConfigStore(store),
		webdavResults: syncer.NewResultLog(store, kv.KeyWebDAVSyncResult),
		webdavStatus:  syncer.NewStatusLog(store, kv.KeyWebDAVSyncStatus),
		webdavOpts:    []webdav.Option{webdav.WithTimeout(cfg.WebDAVTimeout), webdav.WithLogger(logger)},
	}
	svc.webdavConfigs = webdav.NewConfigStore(store, svc.webdavResults, svc.webdavStatus)
	svc.syncBase = syncer.Options{
		Tree:     treeStore,
		Settings: settingsStore,
		Backup:   svc.history,
		Notifier: notifier,
		Logger:   logger,
	}
	a.Service = svc

	gistConfigs, err := svc.gistConfigs.All(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load gist configs: %w", err)
	}
	svc.registerGist(gist.GitHub, gistConfigs[gist.GitHub].AutoSync, gistOptions(cfg.GitHubAPIURL, logger)...)
	svc.registerGist(gist.Gitee, gistConfigs[gist.Gitee].AutoSync, gistOptions(cfg.GiteeAPIURL, logger)...)

	webdavConfigs, err := svc.webdavConfigs.List(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load webdav configs: %w", err)
	}
	for _, c := range webdavConfigs {
		svc.registerWebDAV(c)
	}

	tags, err := treeStore.TagList(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load tags: %w", err)
	}
	searchService.Reindex(tags)

	a.Scheduler = syncer.NewScheduler(svc.registry, settingsStore, cfg.SchedulerTick, logger)
	return a, nil
}

func gistOptions(baseURL string, logger zerolog.Logger) []gist.Option {
	opts := []gist.Option{gist.WithLogger(logger)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, gist.WithBaseURL(baseURL))
	}
	return opts
}

func historyDir(cfg config.Config) string {
	if strings.TrimSpace(cfg.HistoryDir) == "" {
		return "./data/history"
	}
	return cfg.HistoryDir
}
