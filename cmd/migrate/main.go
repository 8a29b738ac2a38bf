package main

// Run database migrations, including the credit and usage stored procedures:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"sparefinder-backend/internal/shared/config"
	"sparefinder-backend/internal/shared/storage/db"
	"sparefinder-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	_ = telemetry.Init(telemetry.Config{ServiceName: "sparefinder-migrate", Environment: cfg.Env, Level: cfg.LogLevel})
	cfg.LogWarnings()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect", map[string]any{"err": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.run", map[string]any{"err": err})
		telemetry.Sync()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", nil)
	telemetry.Sync()
}
