package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/helmgate/internal/model"
)

// ApplicationServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	List(ctx context.Context, selector model.Repository) ([]model.Application, error)
	Describe(ctx context.Context, selector model.Repository, name string) (string, error)
}

// ApplicationHandler はアプリケーションカタログのHTTPハンドラー。
// カタログの閲覧は認証なしで利用できる。
type ApplicationHandler struct {
	service ApplicationServiceInterface
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
	}
}

// List はカタログのアプリケーションを一覧する。
// ?dev=true で開発カタログに切り替わる。
// GET /v1alpha1/apps
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.List(r.Context(), repoSelector(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, toApplicationResponse(app))
	}
	writeJSON(w, http.StatusOK, toListResponse("ApplicationList", items))
}

// Describe はアプリケーションのチャート詳細をテキストで返す。
// GET /v1alpha1/apps/{appName}
func (h *ApplicationHandler) Describe(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.Describe(r.Context(), repoSelector(r), chi.URLParam(r, "appName"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(details))
}
