package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"sparefinder-backend/internal/analyses"
	"sparefinder-backend/internal/credits"
	"sparefinder-backend/internal/inference"
	"sparefinder-backend/internal/inference/httpclient"
	"sparefinder-backend/internal/shared/auth"
	"sparefinder-backend/internal/shared/config"
	"sparefinder-backend/internal/shared/health"
	"sparefinder-backend/internal/shared/server"
	"sparefinder-backend/internal/shared/server/middleware"
	"sparefinder-backend/internal/shared/storage/db"
	"sparefinder-backend/internal/shared/storage/object"
	localstore "sparefinder-backend/internal/shared/storage/object/local"
	s3store "sparefinder-backend/internal/shared/storage/object/s3"
	"sparefinder-backend/internal/shared/telemetry"
	"sparefinder-backend/internal/usage"
	"sparefinder-backend/internal/users"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ImageStore
	Inference       inference.Client
	Ledger          credits.Ledger
	UsageStore      usage.Store
	AnalysesRepo    analyses.Repo
	UsersRepo       users.Repo
	CreditService   *credits.Service
	UsageService    *usage.Service
	AnalysesService *analyses.Service
	UsersService    *users.Service
}

// Build prepares shared dependencies and registers routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	inferenceClient, err := buildInference(cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.Env)
	if err != nil {
		return nil, err
	}

	periods, err := usage.NewPeriodResolver(cfg.UsageTimezone)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		Store:     store,
		Inference: inferenceClient,
	}
	buildServices(app, periods)

	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        verifier,
		Health:          health.NewService(pinger),
		RateLimiter:     middleware.NewRateLimiter(nil),
		UserHandler:     users.NewHandler(app.UsersService),
		CreditHandler:   credits.NewHandler(app.CreditService),
		UsageHandler:    usage.NewHandler(app.UsageService),
		AnalysisHandler: analyses.NewHandler(app.AnalysesService),
	})

	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_stores", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_stores", map[string]any{"reason": "connect failed", "err": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ImageStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildInference(cfg config.Config) (inference.Client, error) {
	if strings.TrimSpace(cfg.InferenceURL) == "" {
		if !cfg.IsDevLike() {
			return nil, fmt.Errorf("INFERENCE_URL is required")
		}
		telemetry.Warn("bootstrap.inference_placeholder", map[string]any{"reason": "INFERENCE_URL empty"})
		return inference.PlaceholderClient{}, nil
	}
	return httpclient.New(cfg.InferenceURL, cfg.InferenceAPIKey, cfg.InferenceTimeout)
}

func buildServices(app *App, periods *usage.PeriodResolver) {
	if app.DB != nil {
		app.Ledger = credits.NewPGLedger(app.DB)
		app.UsageStore = usage.NewPGStore(app.DB)
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.Ledger = credits.NewMemoryLedger()
		app.UsageStore = usage.NewMemoryStore()
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.CreditService = credits.NewService(app.Ledger)
	app.UsageService = usage.NewService(app.UsageStore, periods)
	app.UsersService = users.NewService(app.UsersRepo, app.CreditService, app.Config.SignupBonusCredits)
	app.AnalysesService = &analyses.Service{
		Repo:      app.AnalysesRepo,
		Credits:   app.CreditService,
		Usage:     app.UsageService,
		Store:     app.Store,
		Inference: app.Inference,
	}
}
