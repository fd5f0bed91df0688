package daemon

import (
	"context"

	"github.com/matheus3301/zapcrm/internal/bus"
	"github.com/matheus3301/zapcrm/internal/config"
	"github.com/matheus3301/zapcrm/internal/gate"
	"github.com/matheus3301/zapcrm/internal/gateway"
	"github.com/matheus3301/zapcrm/internal/home"
	"github.com/matheus3301/zapcrm/internal/ingest"
	"github.com/matheus3301/zapcrm/internal/lock"
	"github.com/matheus3301/zapcrm/internal/logging"
	"github.com/matheus3301/zapcrm/internal/outbox"
	"github.com/matheus3301/zapcrm/internal/responder"
	"github.com/matheus3301/zapcrm/internal/store"
	"github.com/matheus3301/zapcrm/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the daemon's startup parameters, resolved from flags
// before the fx graph is built.
type Params struct {
	ConfigPath string // empty = <data dir>/config.toml
	DataDir    string // empty = default base dir
	Listen     string // empty = value from config
}

// Module composes all daemon providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideBaseDir,
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideGate,
			provideManager,
			provideIngestEngine,
			provideSender,
			providePolicy,
			provideResponder,
			provideGateway,
		),
		fx.Invoke(registerLifecycle),
	)
}

type baseDir string

func provideBaseDir(p Params) baseDir {
	return baseDir(home.BaseDir(p.DataDir))
}

func provideConfig(p Params, base baseDir) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = home.ConfigPath(string(base))
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p.Listen != "" {
		cfg.Listen = p.Listen
	}
	return cfg, nil
}

func provideLogger(base baseDir, cfg *config.Config) (*zap.Logger, error) {
	if err := home.EnsureDirs(string(base), cfg.TenantIDs()); err != nil {
		return nil, err
	}
	return logging.New(home.LogPath(string(base)), string(base))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(base baseDir, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring daemon lock", zap.String("data_dir", string(base)))
	l, err := lock.Acquire(string(base))
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideStore(base baseDir, cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	dbPath := home.AppDBPath(string(base))
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
	for _, t := range cfg.Tenants {
		if err := db.EnsureTenant(t.ID, t.Name); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	logger.Info("store initialized", zap.String("path", dbPath), zap.Int("tenants", len(cfg.Tenants)))
	return db, nil
}

func provideGate(db *store.DB) (*gate.Gate, error) {
	return gate.New(db)
}

func provideManager(base baseDir, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *wa.Manager {
	return wa.NewManager(string(base), cfg.TenantIDs(), b, logger)
}

func provideIngestEngine(db *store.DB, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(db, b, cfg.TenantIDs(), logger)
}

func provideSender(db *store.DB, engine *ingest.Engine, manager *wa.Manager, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, engine, manager, logger)
}

func providePolicy(cfg *config.Config) *responder.KeywordPolicy {
	return responder.NewKeywordPolicy(cfg.Tenants)
}

func provideResponder(b *bus.Bus, g *gate.Gate, policy *responder.KeywordPolicy, sender *outbox.Sender, cfg *config.Config, logger *zap.Logger) *responder.Responder {
	return responder.New(b, g, policy, sender, cfg.TenantIDs(), logger)
}

func provideGateway(cfg *config.Config, db *store.DB, b *bus.Bus, g *gate.Gate, manager *wa.Manager, sender *outbox.Sender, logger *zap.Logger) *gateway.Server {
	return gateway.New(cfg.Listen, db, b, g, manager, sender, cfg.TenantIDs(), logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *gateway.Server, lk *lock.Lock, manager *wa.Manager, engine *ingest.Engine, resp *responder.Responder, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			resp.Start(context.Background())

			go func() {
				if err := srv.Start(context.Background()); err != nil {
					logger.Error("gateway server error", zap.Error(err))
				}
			}()

			// Resume sessions that already have credentials. Tenants
			// without a linked device wait for an explicit connect so the
			// QR flow happens when someone is watching.
			for _, tenantID := range cfg.TenantIDs() {
				adapter, err := manager.Get(context.Background(), tenantID)
				if err != nil {
					logger.Error("session init failed", zap.Error(err), zap.String("tenant", tenantID))
					continue
				}
				if !adapter.IsLoggedIn() {
					logger.Info("no credentials, waiting for connect", zap.String("tenant", tenantID))
					continue
				}
				go func() {
					if _, err := adapter.Connect(context.Background()); err != nil {
						logger.Error("auto-connect failed", zap.Error(err), zap.String("tenant", tenantID))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			resp.Stop()
			engine.Stop()
			manager.DisconnectAll()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("gateway shutdown error", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
