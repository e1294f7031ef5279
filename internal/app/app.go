package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/data/db"
	httpserver "github.com/yungbote/bonusfinder-backend/internal/http"
	"github.com/yungbote/bonusfinder-backend/internal/observability"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *httpserver.Server
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Jobs     Jobs
	Metrics  *observability.Metrics

	epoch        time.Time
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	epoch := time.Now().UTC()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients)

	jobset, err := wireJobs(theDB, log, cfg, reposet, serviceset)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       wireServer(theDB, log, cfg, serviceset, metrics),
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Clients:      clients,
		Jobs:         jobset,
		Metrics:      metrics,
		epoch:        epoch,
		otelShutdown: otelShutdown,
	}, nil
}

// Recover fails runs left queued or running by a previous process. Only one
// process per deployment should call it, since a second instance would fail
// the first one's live runs.
func (a *App) Recover(ctx context.Context) error {
	n, err := a.Services.Jobs.RecoverUnfinished(dbctx.Context{Ctx: ctx}, a.epoch)
	if err != nil {
		return fmt.Errorf("recover unfinished jobs: %w", err)
	}
	if n > 0 {
		a.Log.Warn("Failed job runs left over from a previous process", "count", n)
	}
	return nil
}

// Start launches the light worker pool and the scheduler.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.Jobs.start(ctx, a.Cfg)
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Listening", "addr", a.Cfg.Addr())
	return a.Server.Run(ctx, a.Cfg.Addr())
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Jobs.stop()
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
