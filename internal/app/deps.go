package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/weiliu/h5client/internal/account"
	"github.com/weiliu/h5client/internal/api"
	"github.com/weiliu/h5client/internal/catalog"
	"github.com/weiliu/h5client/internal/config"
	"github.com/weiliu/h5client/internal/db"
	"github.com/weiliu/h5client/internal/history"
	"github.com/weiliu/h5client/internal/membership"
	"github.com/weiliu/h5client/internal/navigation"
	"github.com/weiliu/h5client/internal/playback"
	"github.com/weiliu/h5client/internal/repositories"
	"github.com/weiliu/h5client/internal/session"
	"github.com/weiliu/h5client/internal/upload"
)

// Dependencies holds the services a command can use.
type Dependencies struct {
	Session    *session.Context
	Client     *api.Client
	Catalog    *catalog.Service
	Details    catalog.DetailSource
	Account    *account.Service
	History    *history.Service
	Recorder   *history.Recorder
	Membership *membership.Service
	Uploader   upload.Uploader
	// Probe is nil unless an ffprobe binary is configured.
	Probe *playback.FFProbe
}

type cleanupFunc func(context.Context) error

// buildDependencies wires together concrete implementations used by the commands.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger, nav navigation.Navigator) (Dependencies, cleanupFunc, error) {
	var closers []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (Dependencies, cleanupFunc, error) {
		_ = cleanup(ctx)
		return Dependencies{}, nil, err
	}

	store, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	sc := session.NewContext(store)
	if err := sc.Restore(ctx); err != nil {
		return fail(fmt.Errorf("restore session: %w", err))
	}

	client, err := api.NewClient(cfg.APIBaseURL, sc,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithNavigator(nav),
		api.WithLimiter(api.NewPathLimiter(cfg.RequestsPerSecond, cfg.RequestBurst)),
	)
	if err != nil {
		return fail(err)
	}

	catalogSvc := catalog.NewService(client)
	var cache catalog.DetailCache = catalog.NewMemoryCache()
	if cfg.RedisURL != "" {
		redisCache, err := catalog.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		cache = redisCache
		closers = append(closers, func(context.Context) error { return redisCache.Close() })
	}

	historySvc := history.NewService(client)
	recorder := history.NewRecorder(historySvc, sc.IsLoggedIn, history.RecorderConfig{
		QueueSize: cfg.HistoryQueue,
		Workers:   cfg.HistoryWorkers,
		Timeout:   cfg.HTTPTimeout,
	}, logger)
	closers = append(closers, recorder.Shutdown)

	var uploader upload.Uploader = upload.NewBackendUploader(client)
	if cfg.ObjectStore.Enabled() {
		s3Uploader, err := upload.NewS3Uploader(ctx, cfg.ObjectStore)
		if err != nil {
			return fail(err)
		}
		uploader = s3Uploader
	}

	var probe *playback.FFProbe
	if cfg.FFProbePath != "" {
		probe = playback.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout)
	}

	return Dependencies{
		Session:    sc,
		Client:     client,
		Catalog:    catalogSvc,
		Details:    catalog.NewCachingDetails(catalogSvc, cache, cfg.DetailCacheTTL),
		Account:    account.NewService(client, sc, nav),
		History:    historySvc,
		Recorder:   recorder,
		Membership: membership.NewService(client),
		Uploader:   uploader,
		Probe:      probe,
	}, cleanup, nil
}

func openSessionStore(ctx context.Context, cfg config.Config) (session.Store, func(context.Context) error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) {
	case config.SessionBackendFile, "":
		return session.NewFileStore(cfg.SessionFile, cfg.SessionPassphrase), nil, nil
	case config.SessionBackendMemory:
		return session.NewMemoryStore(), nil, nil
	case config.SessionBackendPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := db.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := repositories.NewPostgresSessionStore(pool, cfg.DeviceName)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func(context.Context) error { pool.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
