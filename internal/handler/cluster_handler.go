package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/helmgate/internal/cluster"
	"github.com/hitoshi/helmgate/internal/model"
)

// ClusterServiceInterface はクラスタハンドラーが必要とするサービスインターフェース。
type ClusterServiceInterface interface {
	Create(ctx context.Context, actor *model.User, params cluster.CreateParams) (*model.Cluster, error)
	Get(ctx context.Context, actor *model.User, id string) (*model.Cluster, error)
	List(ctx context.Context, actor *model.User) ([]*model.Cluster, error)
	Delete(ctx context.Context, actor *model.User, id string) error
}

// ClusterHandler はクラスタ管理のHTTPハンドラー。
type ClusterHandler struct {
	service ClusterServiceInterface
}

// NewClusterHandler はClusterHandlerを生成する。
func NewClusterHandler(service ClusterServiceInterface) *ClusterHandler {
	return &ClusterHandler{
		service: service,
	}
}

type createClusterRequest struct {
	Name       string `json:"name" validate:"required"`
	GroupID    string `json:"group" validate:"required"`
	Kubeconfig string `json:"kubeconfig" validate:"required"`
}

// Create はクラスタを登録する。kubeconfigは保存されるがレスポンスには含めない。
// POST /v1alpha1/clusters
func (h *ClusterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClusterRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), actor(r), cluster.CreateParams{
		Name:       req.Name,
		GroupID:    req.GroupID,
		Kubeconfig: req.Kubeconfig,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClusterResponse(created))
}

// Get はクラスタを1件取得する。
// GET /v1alpha1/clusters/{clusterID}
func (h *ClusterHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), actor(r), chi.URLParam(r, "clusterID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClusterResponse(found))
}

// List は全クラスタを一覧する。
// GET /v1alpha1/clusters
func (h *ClusterHandler) List(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.service.List(r.Context(), actor(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]clusterResponse, 0, len(clusters))
	for _, c := range clusters {
		items = append(items, toClusterResponse(c))
	}
	writeJSON(w, http.StatusOK, toListResponse("ClusterList", items))
}

// Delete はクラスタを削除する。インスタンスをホストしている間は409。
// DELETE /v1alpha1/clusters/{clusterID}
func (h *ClusterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actor(r), chi.URLParam(r, "clusterID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
