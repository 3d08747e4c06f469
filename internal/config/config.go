// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Helm (Actuator Gateway)
	HelmBinary   string
	HelmMainRepo string
	HelmDevRepo  string
	HelmTimeout  time.Duration

	// Reconciliation
	// 補償削除に失敗した孤児レコードを掃除するスイーパーの実行間隔。
	ReconcileInterval time.Duration

	// Bootstrap
	// 事前シードされたbootstrap管理者のトークン。設定されている場合、
	// 起動時に管理者レコードへローテーションされる。
	BootstrapAdminToken string

	// Rate Limit
	RateLimitGeneral int
	RateLimitInstall int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.HelmBinary = getEnvString("HELM_BINARY", "helm")
	cfg.HelmMainRepo = getEnvString("HELM_MAIN_REPO", "slate")
	cfg.HelmDevRepo = getEnvString("HELM_DEV_REPO", "slate-dev")
	cfg.HelmTimeout = getEnvDuration("HELM_TIMEOUT", 60*time.Second)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", time.Hour)
	cfg.BootstrapAdminToken = os.Getenv("BOOTSTRAP_ADMIN_TOKEN")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitInstall = getEnvInt("RATE_LIMIT_INSTALL", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
