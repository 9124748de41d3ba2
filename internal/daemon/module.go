package daemon

import (
	"context"
	"errors"
	"os"

	"github.com/gfranco93/cmirror/internal/api"
	"github.com/gfranco93/cmirror/internal/bus"
	"github.com/gfranco93/cmirror/internal/config"
	"github.com/gfranco93/cmirror/internal/cursor"
	"github.com/gfranco93/cmirror/internal/diag"
	"github.com/gfranco93/cmirror/internal/lock"
	"github.com/gfranco93/cmirror/internal/logging"
	"github.com/gfranco93/cmirror/internal/profile"
	"github.com/gfranco93/cmirror/internal/remote"
	"github.com/gfranco93/cmirror/internal/status"
	"github.com/gfranco93/cmirror/internal/store"
	intsync "github.com/gfranco93/cmirror/internal/sync"
	"github.com/gfranco93/cmirror/internal/synclock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideMerger,
			provideLockManager,
			provideDetector,
			provideRemote,
			provideEngine,
			provideAPI,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		// Fresh install; the sync loop stays off until a remote is configured.
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
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
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideMerger(db *store.DB, b *bus.Bus, logger *zap.Logger) *cursor.Merger {
	return cursor.NewMerger(db, b, logger)
}

func provideLockManager(db *store.DB, b *bus.Bus, logger *zap.Logger) *synclock.Manager {
	return synclock.NewManager(db, b, logger)
}

func provideDetector(db *store.DB, logger *zap.Logger) *diag.Detector {
	return diag.NewDetector(db, logger)
}

func provideRemote(cfg *config.Config) remote.Client {
	return remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Token)
}

func provideEngine(db *store.DB, merger *cursor.Merger, locks *synclock.Manager, rc remote.Client, machine *status.Machine, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *intsync.Engine {
	return intsync.NewEngine(db, merger, locks, rc, machine, b, logger, cfg.Sync)
}

func provideAPI(p Params, db *store.DB, machine *status.Machine, detector *diag.Detector, merger *cursor.Merger, engine *intsync.Engine, logger *zap.Logger) *api.API {
	return api.New(p.ProfileName, db, machine, detector, merger, engine, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, engine *intsync.Engine, machine *status.Machine, db *store.DB, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start admin server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("admin server error", zap.Error(err))
				}
			}()

			if err := machine.Transition(status.Idle); err != nil {
				return err
			}

			// Start the background sync loop. Without a configured remote the
			// daemon only serves the local mirror.
			if cfg.Remote.BaseURL != "" {
				engine.Start(context.Background())
			} else {
				logger.Warn("no remote configured, background sync disabled")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			engine.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing profile lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
