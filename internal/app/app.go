// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/helmgate/internal/application"
	"github.com/hitoshi/helmgate/internal/auth"
	"github.com/hitoshi/helmgate/internal/cluster"
	"github.com/hitoshi/helmgate/internal/config"
	"github.com/hitoshi/helmgate/internal/database"
	"github.com/hitoshi/helmgate/internal/group"
	"github.com/hitoshi/helmgate/internal/handler"
	"github.com/hitoshi/helmgate/internal/helm"
	"github.com/hitoshi/helmgate/internal/instance"
	"github.com/hitoshi/helmgate/internal/logger"
	"github.com/hitoshi/helmgate/internal/metrics"
	"github.com/hitoshi/helmgate/internal/middleware"
	"github.com/hitoshi/helmgate/internal/repository"
	"github.com/hitoshi/helmgate/internal/user"
	"github.com/hitoshi/helmgate/internal/worker/reconcile"
)

// bootstrapAdminID はマイグレーションで事前シードされる管理者のID。
const bootstrapAdminID = "user_bootstrap_admin"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	groupRepo := repository.NewPostgresGroupRepo(db)
	clusterRepo := repository.NewPostgresClusterRepo(db)
	instanceRepo := repository.NewPostgresInstanceRepo(db)
	reconRepo := repository.NewPostgresReconciliationRepo(db)

	// 3. bootstrap管理者のトークンローテーション
	if err := rotateBootstrapToken(context.Background(), userRepo, cfg.BootstrapAdminToken); err != nil {
		return fmt.Errorf("failed to rotate bootstrap admin token: %w", err)
	}

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. Actuator Gatewayの初期化
	gateway := helm.NewGateway(cfg.HelmBinary, cfg.HelmTimeout)

	// 6. ドメインサービスの初期化
	authService := auth.NewService(userRepo, groupRepo)
	userService := user.NewService(userRepo, groupRepo, authService)
	groupService := group.NewService(groupRepo, userRepo, clusterRepo, instanceRepo, authService)
	clusterService := cluster.NewService(clusterRepo, groupRepo, instanceRepo, authService)
	appService := application.NewService(gateway, cfg.HelmMainRepo, cfg.HelmDevRepo)
	instanceService := instance.NewService(
		instanceRepo, groupRepo, clusterRepo, reconRepo,
		appService, gateway, authService, collector,
	)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitInstall),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Collector:         collector,
		Gatherer:          registry,

		ApplicationService: appService,
		InstanceService:    instanceService,
		UserService:        userService,
		GroupService:       groupService,
		ClusterService:     clusterService,
		GroupLister:        groupService,
	})

	// 8. リコンシリエーションスイーパーのバックグラウンド起動
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	sweeper := reconcile.NewSweeper(db, slog.Default())
	go func() {
		// 起動直後に1回実行
		if err := sweeper.Run(sweepCtx); err != nil {
			slog.Error("reconciliation sweep failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if err := sweeper.Run(sweepCtx); err != nil {
					slog.Error("reconciliation sweep failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HelmTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// rotateBootstrapToken は事前シードされたbootstrap管理者のトークンを
// 環境変数の値へ書き換える。未設定の場合はプレースホルダのまま残り、
// そのトークンでは実質ログインできない。
func rotateBootstrapToken(ctx context.Context, users repository.UserRepository, token string) error {
	if token == "" {
		slog.Warn("BOOTSTRAP_ADMIN_TOKEN is not set; bootstrap admin is unusable")
		return nil
	}

	admin, err := users.FindByID(ctx, bootstrapAdminID)
	if err != nil {
		return err
	}
	if admin == nil {
		// マイグレーション未適用か、運用者が明示的に削除した場合
		slog.Warn("bootstrap admin record not found; skipping token rotation")
		return nil
	}

	admin.Token = token
	if err := users.Update(ctx, admin); err != nil {
		return err
	}

	slog.Info("bootstrap admin token rotated")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
