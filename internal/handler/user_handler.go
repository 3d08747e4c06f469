package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/helmgate/internal/model"
	"github.com/hitoshi/helmgate/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Create(ctx context.Context, actor *model.User, params user.CreateParams) (*model.User, error)
	Get(ctx context.Context, actor *model.User, id string) (*model.User, error)
	List(ctx context.Context, actor *model.User) ([]*model.User, error)
	Update(ctx context.Context, actor *model.User, id string, update model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, actor *model.User, id string) error
	RotateToken(ctx context.Context, actor *model.User, id string) (*model.User, error)
}

// GroupLister はユーザーの所属Group一覧を提供する。
type GroupLister interface {
	ListForUser(ctx context.Context, actor *model.User, userID string) ([]*model.Group, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	groups  GroupLister
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, groups GroupLister) *UserHandler {
	return &UserHandler{
		service: service,
		groups:  groups,
	}
}

type createUserRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required"`
	Phone       string `json:"phone"`
	Institution string `json:"institution"`
	GlobusID    string `json:"globusID" validate:"required"`
	Admin       bool   `json:"admin"`
}

// Create は新しいユーザーを登録する。
// POST /v1alpha1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), actor(r), user.CreateParams{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Institution: req.Institution,
		GlobusID:    req.GlobusID,
		Admin:       req.Admin,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// トークンは作成レスポンスでのみ開示する。
	writeJSON(w, http.StatusCreated, toUserResponse(created, true))
}

// Get はユーザーを1件取得する。
// GET /v1alpha1/users/{userID}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), actor(r), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(found, false))
}

// List は全ユーザーを一覧する。
// GET /v1alpha1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context(), actor(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u, false))
	}
	writeJSON(w, http.StatusOK, toListResponse("UserList", items))
}

type updateUserRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Institution *string `json:"institution"`
	Admin       *bool   `json:"admin"`
}

// Update はユーザーを部分更新する。
// PUT /v1alpha1/users/{userID}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), actor(r), chi.URLParam(r, "userID"), model.UserUpdate{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Institution: req.Institution,
		Admin:       req.Admin,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated, false))
}

// Delete はユーザーを削除する。
// DELETE /v1alpha1/users/{userID}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actor(r), chi.URLParam(r, "userID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RotateToken はユーザーのアクセストークンを再発行する。
// PUT /v1alpha1/users/{userID}/token
func (h *UserHandler) RotateToken(w http.ResponseWriter, r *http.Request) {
	rotated, err := h.service.RotateToken(r.Context(), actor(r), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(rotated, true))
}

// ListGroups はユーザーが所属するGroupを一覧する。
// GET /v1alpha1/users/{userID}/groups
func (h *UserHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListForUser(r.Context(), actor(r), chi.URLParam(r, "userID"))
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
