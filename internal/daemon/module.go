package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/bus"
	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/lock"
	"github.com/matheus3301/telesync/internal/logging"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/td"
	"github.com/matheus3301/telesync/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// openTimeout bounds the wait for the backend to authorize the session.
const openTimeout = time.Minute

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string           // optional override; empty = use default
	NewClient   td.NewClientFunc // optional override; nil = WhatsApp backend
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideAccount,
			provideClientFunc,
			provideSession,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, logging.ParseLevel(cfg.LogLevel))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.LockPath(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired", zap.String("path", l.Path()))
	return l, nil
}

func provideAccount(p Params, _ *lock.Lock) (*config.Account, error) {
	return config.LoadOrCreateAccount(session.AccountPath(p.SessionName))
}

func provideClientFunc(p Params, logger *zap.Logger) td.NewClientFunc {
	if p.NewClient != nil {
		return p.NewClient
	}
	return wa.NewClientFunc(wa.OpenAdapter, logger.Named("backend"))
}

// provideSession releases the lock itself when the session cannot be opened,
// since no stop hook runs for a failed start.
func provideSession(p Params, cfg *config.Config, acc *config.Account, lk *lock.Lock, newClient td.NewClientFunc, b *bus.Bus, logger *zap.Logger) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	sess, err := session.Open(ctx, session.Params{
		Name:        p.SessionName,
		Config:      cfg,
		Account:     acc,
		DatabaseDir: session.DatabaseDir(p.SessionName),
		FilesDir:    session.FilesDir(p.SessionName),
	}, newClient, b, logger.Named("session"))
	if err != nil {
		if rerr := lk.Release(); rerr != nil {
			logger.Warn("error releasing lock", zap.Error(rerr))
		}
		return nil, err
	}
	return sess, nil
}

func provideService(s *session.Session, b *bus.Bus, logger *zap.Logger) *api.Service {
	return api.NewService(s, b, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, sess *session.Session, lk *lock.Lock, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Fill the chat list with the first page.
			go func() {
				if _, err := sess.LoadChats(ctx, 0); err != nil && ctx.Err() == nil {
					logger.Warn("initial chat load failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			srv.Stop(stopCtx)
			if err := sess.Close(stopCtx); err != nil {
				logger.Warn("error closing session", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
