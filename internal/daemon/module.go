package daemon

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/binder"
	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/config"
	"github.com/rsuppersahabatan/baileys-api/internal/histsync"
	"github.com/rsuppersahabatan/baileys-api/internal/lock"
	"github.com/rsuppersahabatan/baileys-api/internal/logging"
	"github.com/rsuppersahabatan/baileys-api/internal/metrics"
	"github.com/rsuppersahabatan/baileys-api/internal/session"
	"github.com/rsuppersahabatan/baileys-api/internal/snapshot"
	"github.com/rsuppersahabatan/baileys-api/internal/store"
	"github.com/rsuppersahabatan/baileys-api/internal/wa"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideLock,
			provideStore,
			provideEngine,
			provideController,
			provideAdapter,
			provideBinder,
			provideCollector,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded",
		zap.Int("max_messages_per_chat", cfg.Store.MaxMessagesPerChat),
		zap.Int("auto_save_interval_ms", cfg.Store.AutoSaveIntervalMS))
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *store.Store {
	return store.New(store.Options{
		MaxMessagesPerChat: cfg.Store.MaxMessagesPerChat,
	}, b, logger)
}

func provideEngine(p Params, cfg *config.Config, st *store.Store, b *bus.Bus, logger *zap.Logger) *snapshot.Engine {
	path := cfg.Store.SnapshotPath
	if path == "" {
		path = session.SnapshotPath(p.SessionName)
	}
	return snapshot.NewEngine(path, st, b, logger)
}

func provideController(cfg *config.Config, st *store.Store, engine *snapshot.Engine, b *bus.Bus, logger *zap.Logger) *histsync.Controller {
	return histsync.NewController(st, engine, b, logger, histsync.Options{
		SignificantChats:    cfg.Store.SignificantChats,
		SignificantMessages: cfg.Store.SignificantMessages,
		ChunkSize:           cfg.Store.ChunkSize,
		BackupInMemory:      cfg.Store.BackupInMemory,
		BackupToDisk:        cfg.Store.BackupToDisk,
		IncrementalSave:     cfg.Store.IncrementalSave,
	})
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, b, logger)
}

func provideBinder(cfg *config.Config, st *store.Store, ctrl *histsync.Controller, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *binder.Binder {
	return binder.New(st, ctrl, adapter, b, logger, binder.Options{
		LiveBatchLimit: cfg.Store.LiveBatchLimit,
	})
}

func provideCollector(st *store.Store, b *bus.Bus, logger *zap.Logger) *metrics.Collector {
	return metrics.NewCollector(st, b, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	cfg *config.Config,
	srv *Server,
	lk *lock.Lock,
	adapter *wa.Adapter,
	engine *snapshot.Engine,
	bnd *binder.Binder,
	collector *metrics.Collector,
	st *store.Store,
	b *bus.Bus,
	logger *zap.Logger,
) {
	var stopAutoSave chan struct{}
	var metricsSrv *http.Server

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Load the previous snapshot. A corrupted file is reported
			// on the bus, never fatal; the daemon starts empty.
			if err := engine.Load(ctx); err != nil {
				logger.Warn("snapshot load failed, starting empty", zap.Error(err))
			}

			// Route transport events into the store.
			bnd.Start(context.Background())
			collector.Start(context.Background())
			if cfg.MetricsAddr != "" {
				metricsSrv = metrics.Serve(cfg.MetricsAddr, logger)
				logger.Info("metrics exposed", zap.String("addr", cfg.MetricsAddr))
			}

			handler := wa.NewEventHandler(b, logger)
			adapter.RegisterEventHandler(handler.Handle)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if interval := time.Duration(cfg.Store.AutoSaveIntervalMS) * time.Millisecond; interval > 0 {
				stopAutoSave = make(chan struct{})
				go func() {
					t := time.NewTicker(interval)
					defer t.Stop()
					for {
						select {
						case <-t.C:
							engine.RequestSave()
						case <-stopAutoSave:
							return
						}
					}
				}()
			}

			if adapter.IsLoggedIn() {
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						return
					}
					// Seed contacts already known to the credentials store.
					for _, c := range adapter.DeviceContacts(context.Background()) {
						st.UpsertContact(c)
					}
				}()
			} else {
				logger.Info("no credentials found, starting QR pairing")
				go func() {
					done, err := adapter.StartQRAuth(context.Background())
					if err != nil {
						logger.Error("QR pairing unavailable", zap.Error(err))
						return
					}
					<-done
				}()
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if stopAutoSave != nil {
				close(stopAutoSave)
			}
			bnd.Stop()
			adapter.Disconnect()

			// Flush queued background saves, then take a final snapshot.
			engine.Flush()
			if err := engine.SaveNow(ctx); err != nil {
				logger.Error("final snapshot failed", zap.Error(err))
			}

			collector.Stop()
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
