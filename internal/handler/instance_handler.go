package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/helmgate/internal/instance"
	"github.com/hitoshi/helmgate/internal/model"
)

// InstanceServiceInterface はインスタンスハンドラーが必要とするサービスインターフェース。
type InstanceServiceInterface interface {
	Install(ctx context.Context, actor *model.User, params instance.InstallParams) (*instance.InstallResult, error)
	Get(ctx context.Context, actor *model.User, id string) (*model.ApplicationInstance, error)
	List(ctx context.Context, actor *model.User, groupID, clusterID string) ([]*model.ApplicationInstance, error)
	Delete(ctx context.Context, actor *model.User, id string) error
}

// InstanceHandler はアプリケーションインスタンスのHTTPハンドラー。
type InstanceHandler struct {
	service InstanceServiceInterface
}

// NewInstanceHandler はInstanceHandlerを生成する。
func NewInstanceHandler(service InstanceServiceInterface) *InstanceHandler {
	return &InstanceHandler{
		service: service,
	}
}

// installRequest はインストールリクエスト。
// tagとconfigurationはキーの存在が必須で、値は空でもよい。ポインタ型に
// requiredを付けることで「キーなし」と「空文字」を区別している。
type installRequest struct {
	Group         string  `json:"group" validate:"required"`
	Cluster       string  `json:"cluster" validate:"required"`
	Tag           *string `json:"tag" validate:"required"`
	Configuration *string `json:"configuration" validate:"required"`
}

// Install はアプリケーションをクラスタへインストールする。
// POST /v1alpha1/apps/{appName}/instances
func (h *InstanceHandler) Install(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Install(r.Context(), actor(r), instance.InstallParams{
		Application:   chi.URLParam(r, "appName"),
		Repository:    repoSelector(r),
		GroupID:       req.Group,
		ClusterID:     req.Cluster,
		Tag:           *req.Tag,
		Configuration: *req.Configuration,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInstanceResponse(result.Instance, result.Summary))
}

// Get はインスタンスを1件取得する。
// GET /v1alpha1/instances/{instanceID}
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), actor(r), chi.URLParam(r, "instanceID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInstanceResponse(found, model.InstanceSummary{}))
}

// List はアクターが閲覧できるインスタンスを一覧する。
// groupとclusterのクエリパラメータで絞り込める。
// GET /v1alpha1/instances
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group")
	clusterID := r.URL.Query().Get("cluster")

	instances, err := h.service.List(r.Context(), actor(r), groupID, clusterID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]instanceResponse, 0, len(instances))
	for _, in := range instances {
		items = append(items, toInstanceResponse(in, model.InstanceSummary{}))
	}
	writeJSON(w, http.StatusOK, toListResponse("ApplicationInstanceList", items))
}

// Delete はインスタンスをアンインストールし、レコードを削除する。
// DELETE /v1alpha1/instances/{instanceID}
func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actor(r), chi.URLParam(r, "instanceID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
