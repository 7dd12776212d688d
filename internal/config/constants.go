// internal/config/constants.go
package config

import "time"

// アプリケーション情報
const (
	AppName    = "course-outline-sync"
	AppVersion = "1.0.0"
)

// デフォルト設定値
const (
	DefaultServerPort     = ":8080"
	DefaultLogLevel       = "info"
	DefaultNotifierType   = "log"
	DefaultRepairSchedule = "@every 1h"
)

// DB 接続プール
const (
	DefaultDBMaxIdleConns    = 10
	DefaultDBMaxOpenConns    = 50
	DefaultDBConnMaxLifetime = 30 * time.Minute
	DefaultDBSlowThreshold   = 200 * time.Millisecond
)
