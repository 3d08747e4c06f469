package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/helmgate/internal/group"
	"github.com/hitoshi/helmgate/internal/model"
)

// GroupServiceInterface はGroupハンドラーが必要とするサービスインターフェース。
type GroupServiceInterface interface {
	Create(ctx context.Context, actor *model.User, params group.CreateParams) (*model.Group, error)
	Get(ctx context.Context, actor *model.User, id string) (*model.Group, error)
	List(ctx context.Context, actor *model.User) ([]*model.Group, error)
	Delete(ctx context.Context, actor *model.User, id string) error
	AddMember(ctx context.Context, actor *model.User, userID, groupID string) error
	RemoveMember(ctx context.Context, actor *model.User, userID, groupID string) error
	ListMembers(ctx context.Context, actor *model.User, groupID string) ([]*model.User, error)
}

// GroupHandler はGroup管理のHTTPハンドラー。
type GroupHandler struct {
	service GroupServiceInterface
}

// NewGroupHandler はGroupHandlerを生成する。
func NewGroupHandler(service GroupServiceInterface) *GroupHandler {
	return &GroupHandler{
		service: service,
	}
}

type createGroupRequest struct {
	Name         string `json:"name" validate:"required"`
	ScienceField string `json:"scienceField"`
}

// Create は新しいGroupを作成する。作成者は最初のメンバーになる。
// POST /v1alpha1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), actor(r), group.CreateParams{
		Name:         req.Name,
		ScienceField: req.ScienceField,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGroupResponse(created))
}

// Get はGroupを1件取得する。
// GET /v1alpha1/groups/{groupID}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), actor(r), chi.URLParam(r, "groupID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGroupResponse(found))
}

// List は全Groupを一覧する。
// GET /v1alpha1/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.List(r.Context(), actor(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		items = append(items, toGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, toListResponse("GroupList", items))
}

// Delete はGroupを削除する。クラスタやインスタンスを所有している間は409。
// DELETE /v1alpha1/groups/{groupID}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actor(r), chi.URLParam(r, "groupID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddMember はユーザーをGroupのメンバーに追加する。
// PUT /v1alpha1/groups/{groupID}/members/{userID}
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	err := h.service.AddMember(r.Context(), actor(r), chi.URLParam(r, "userID"), chi.URLParam(r, "groupID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember はユーザーをGroupのメンバーから外す。
// 最後のメンバーを外してもGroup自体は残る。
// DELETE /v1alpha1/groups/{groupID}/members/{userID}
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveMember(r.Context(), actor(r), chi.URLParam(r, "userID"), chi.URLParam(r, "groupID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembers はGroupのメンバーを一覧する。
// GET /v1alpha1/groups/{groupID}/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context(), actor(r), chi.URLParam(r, "groupID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]userResponse, 0, len(members))
	for _, m := range members {
		items = append(items, toUserResponse(m, false))
	}
	writeJSON(w, http.StatusOK, toListResponse("UserList", items))
}
