package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/helmgate/internal/metrics"
	"github.com/hitoshi/helmgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// カタログ
	ApplicationService ApplicationServiceInterface

	// インスタンス
	InstanceService InstanceServiceInterface

	// ユーザー・Group・クラスタ
	UserService    UserServiceInterface
	GroupService   GroupServiceInterface
	ClusterService ClusterServiceInterface
	GroupLister    GroupLister
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Metrics → Token
//
// トークンミドルウェアは匿名リクエストを拒否しない。保護ルートは
// RequireUserとレート制限を重ねたグループに置き、カタログ閲覧と
// ヘルスチェック、メトリクスはその外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	r.Use(middleware.NewTokenMiddleware(deps.Authenticator))

	appHandler := NewApplicationHandler(deps.ApplicationService)
	instanceHandler := NewInstanceHandler(deps.InstanceService)
	userHandler := NewUserHandler(deps.UserService, deps.GroupLister)
	groupHandler := NewGroupHandler(deps.GroupService)
	clusterHandler := NewClusterHandler(deps.ClusterService)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	// カタログ閲覧
	r.Get("/v1alpha1/apps", appHandler.List)
	r.Get("/v1alpha1/apps/{appName}", appHandler.Describe)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: RequireUser → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// インストールのみ追加のレート制限がかかる
		r.With(deps.RateLimiter.InstallMiddleware()).
			Post("/v1alpha1/apps/{appName}/instances", instanceHandler.Install)

		// インスタンス管理
		r.Route("/v1alpha1/instances", func(r chi.Router) {
			r.Get("/", instanceHandler.List)
			r.Get("/{instanceID}", instanceHandler.Get)
			r.Delete("/{instanceID}", instanceHandler.Delete)
		})

		// ユーザー管理
		r.Route("/v1alpha1/users", func(r chi.Router) {
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Get("/{userID}", userHandler.Get)
			r.Put("/{userID}", userHandler.Update)
			r.Delete("/{userID}", userHandler.Delete)
			r.Put("/{userID}/token", userHandler.RotateToken)
			r.Get("/{userID}/groups", userHandler.ListGroups)
		})

		// Group管理
		r.Route("/v1alpha1/groups", func(r chi.Router) {
			r.Post("/", groupHandler.Create)
			r.Get("/", groupHandler.List)
			r.Get("/{groupID}", groupHandler.Get)
			r.Delete("/{groupID}", groupHandler.Delete)
			r.Get("/{groupID}/members", groupHandler.ListMembers)
			r.Put("/{groupID}/members/{userID}", groupHandler.AddMember)
			r.Delete("/{groupID}/members/{userID}", groupHandler.RemoveMember)
		})

		// クラスタ管理
		r.Route("/v1alpha1/clusters", func(r chi.Router) {
			r.Post("/", clusterHandler.Create)
			r.Get("/", clusterHandler.List)
			r.Get("/{clusterID}", clusterHandler.Get)
			r.Delete("/{clusterID}", clusterHandler.Delete)
		})
	})

	return r
}
