// cmd/migrate/main.go
// デプロイ時に1回だけ実行するマイグレーションです。何度実行しても結果は同じです。
package main

import (
	"context"
	"log/slog"
	"os"

	"go_5_course_keep/internal/config"
	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := config.LoadConfig("../configs"); err != nil {
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := repository.NewDB(config.Cfg.Database, logger)
	if err != nil {
		slog.Error("Error initializing database", slog.Any("error", err))
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		os.Exit(1)
	}
	defer sqlDB.Close()

	ctx := middleware.WithLogger(context.Background(), logger.With("component", "migrate"))
	if err := repository.Migrate(ctx, db); err != nil {
		slog.Error("Migration failed", slog.Any("error", err))
		sqlDB.Close()
		os.Exit(1)
	}
	slog.Info("Migration finished")
}
