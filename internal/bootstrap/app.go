package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"docintake-backend/internal/documents"
	"docintake-backend/internal/pipeline"
	"docintake-backend/internal/processing"
	"docintake-backend/internal/shared/config"
	"docintake-backend/internal/shared/server"
	"docintake-backend/internal/shared/storage/db"
	"docintake-backend/internal/shared/storage/object"
	localstore "docintake-backend/internal/shared/storage/object/local"
	s3store "docintake-backend/internal/shared/storage/object/s3"
	"docintake-backend/internal/stats"
	"docintake-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	UsersRepo      users.Repo
	DocumentsRepo  documents.Repo
	ProcessingRepo processing.Repo

	UsersService      *users.Service
	DocumentsService  *documents.Service
	ProcessingService *processing.Service
	StatsService      *stats.Service
	Janitor           *processing.Janitor
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stages, err := pipeline.Build(cfg.PipelineStages)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	if app.DB != nil {
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.ProcessingRepo = &processing.PGRepo{DB: app.DB}
	} else {
		app.UsersRepo = users.NewMemoryRepo()
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.ProcessingRepo = processing.NewMemoryRepo()
	}

	app.UsersService = &users.Service{
		Repo:       app.UsersRepo,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
	app.DocumentsService = &documents.Service{
		Repo:   app.DocumentsRepo,
		Store:  app.Store,
		Purger: app.ProcessingRepo,
	}
	app.ProcessingService = &processing.Service{
		Docs:   app.DocumentsRepo,
		Repo:   app.ProcessingRepo,
		Store:  app.Store,
		Stages: stages,
	}
	app.StatsService = &stats.Service{Docs: app.DocumentsRepo}
	app.Janitor = &processing.Janitor{
		Docs:     app.DocumentsRepo,
		Repo:     app.ProcessingRepo,
		Timeout:  cfg.ProcessingTimeout,
		Interval: cfg.JanitorInterval,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config: cfg,
		Handlers: []server.RouteRegistrar{
			&users.Handler{Svc: app.UsersService},
			&documents.Handler{Service: app.DocumentsService},
			&processing.Handler{Service: app.ProcessingService},
			&stats.Handler{Service: app.StatsService},
		},
	})

	return app, nil
}

// StartJanitor launches the stale run sweeper until ctx is cancelled.
func (a *App) StartJanitor(ctx context.Context) {
	go a.Janitor.Start(ctx)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
