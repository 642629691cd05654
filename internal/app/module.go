package app

import (
	"context"

	"github.com/rfpgpt/rfpgpt/internal/auth"
	"github.com/rfpgpt/rfpgpt/internal/bus"
	"github.com/rfpgpt/rfpgpt/internal/chat"
	"github.com/rfpgpt/rfpgpt/internal/config"
	"github.com/rfpgpt/rfpgpt/internal/docs"
	"github.com/rfpgpt/rfpgpt/internal/history"
	"github.com/rfpgpt/rfpgpt/internal/lock"
	"github.com/rfpgpt/rfpgpt/internal/logging"
	"github.com/rfpgpt/rfpgpt/internal/profile"
	"github.com/rfpgpt/rfpgpt/internal/send"
	"github.com/rfpgpt/rfpgpt/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideTokens,
			provideRefresher,
			provideClient,
			provideDefaults,
			provideStore,
			providePipeline,
			provideUploader,
			provideArchiveDB,
			provideArchiver,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideTokens(p Params) (*auth.Holder, error) {
	token, err := auth.LoadToken(profile.TokenPath(p.Profile))
	if err != nil {
		return nil, err
	}
	return auth.NewHolder(token), nil
}

func provideRefresher(p Params) auth.Refresher {
	return auth.FileRefresher{Path: profile.TokenPath(p.Profile)}
}

func provideClient(cfg *config.Config, tokens *auth.Holder, refresher auth.Refresher, logger *zap.Logger) *transport.Client {
	return transport.New(cfg.APIBaseURL, tokens, refresher, logger)
}

func provideDefaults(cfg *config.Config) chat.Settings {
	return chat.Settings{
		Persona:       cfg.Persona,
		ResponseStyle: cfg.ResponseStyle,
		CiteSources:   cfg.CiteSources,
		FollowUps:     cfg.FollowUps,
	}
}

func provideStore(client *transport.Client, b *bus.Bus, logger *zap.Logger) *chat.Store {
	return chat.NewStore(client, b, logger)
}

func providePipeline(store *chat.Store, client *transport.Client, b *bus.Bus, defaults chat.Settings, logger *zap.Logger) *send.Pipeline {
	return send.NewPipeline(store, client, b, defaults, logger)
}

func provideUploader(client *transport.Client, store *chat.Store, b *bus.Bus, defaults chat.Settings, logger *zap.Logger) *docs.Uploader {
	return docs.NewUploader(client, store, b, defaults, logger)
}

func provideArchiveDB(p Params, logger *zap.Logger) (*history.DB, error) {
	dbPath := profile.ArchiveDBPath(p.Profile)
	db, err := history.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("archive initialized", zap.String("path", dbPath))
	return db, nil
}

func provideArchiver(db *history.DB, store *chat.Store, b *bus.Bus, logger *zap.Logger) *history.Archiver {
	return history.NewArchiver(db, store, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, store *chat.Store, uploader *docs.Uploader, archiver *history.Archiver, db *history.DB, logger *zap.Logger) {
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Archive transcript events as they happen.
			archiver.Start(context.Background())

			// React to session switches with document refreshes.
			go uploader.Watch(watchCtx)

			// Initial session list load happens in the background so a
			// slow or offline backend does not block startup.
			go func() {
				if err := store.LoadSessions(context.Background()); err != nil {
					logger.Warn("initial session load failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancelWatch()
			archiver.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("archive close failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("lock release failed", zap.Error(err))
			}
			logger.Info("shutdown complete")
			_ = logger.Sync()
			return nil
		},
	})
}
