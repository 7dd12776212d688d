package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go_5_course_keep/internal/config"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

// NewDB は Postgres への GORM 接続を作ります。プールと GORM のログは cfg に従います。
func NewDB(cfg config.DatabaseConfig, appLogger *slog.Logger) (*gorm.DB, error) {
	level, err := gormLogLevel(cfg.LogLevel, os.Getenv("APP_ENV"))
	if err != nil {
		return nil, err
	}

	gormLogger := slogGorm.New(
		slogGorm.WithHandler(appLogger.Handler()),
		slogGorm.WithTraceAll(),
		slogGorm.WithSlowThreshold(cfg.SlowThreshold),
	).LogMode(level)

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{Logger: gormLogger})
	if err != nil {
		appLogger.Error("Failed to connect to database with GORM", slog.Any("error", err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		appLogger.Error("Error pinging database", slog.Any("error", err))
		sqlDB.Close()
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	appLogger.Info("Database connection established with GORM",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("slow_threshold", cfg.SlowThreshold),
	)
	return db, nil
}

// gormLogLevel は設定値を GORM のレベルに変換します。空なら環境で決めます。
func gormLogLevel(name, appEnv string) (gormlogger.LogLevel, error) {
	switch strings.ToLower(name) {
	case "":
		if strings.ToLower(appEnv) == "dev" {
			return gormlogger.Info, nil
		}
		return gormlogger.Warn, nil
	case "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "warn":
		return gormlogger.Warn, nil
	case "info":
		return gormlogger.Info, nil
	default:
		return 0, fmt.Errorf("repository.NewDB: unknown database.log_level %q", name)
	}
}
