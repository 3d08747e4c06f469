// Package user はユーザーのライフサイクル管理を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/helmgate/internal/auth"
	"github.com/hitoshi/helmgate/internal/model"
	"github.com/hitoshi/helmgate/internal/repository"
)

// Authorizer はユーザー操作の認可判定インターフェース。
type Authorizer interface {
	CanCreateUser(actor *model.User) bool
	CanManageUser(actor *model.User, targetUserID string) bool
	CanSetAdmin(actor *model.User) bool
}

// Service はユーザー管理のビジネスロジックを提供する。
type Service struct {
	users  repository.UserRepository
	groups repository.GroupRepository
	authz  Authorizer
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, groups repository.GroupRepository, authz Authorizer) *Service {
	return &Service{users: users, groups: groups, authz: authz}
}

// CreateParams はユーザー作成の入力を表す。
type CreateParams struct {
	Name        string
	Email       string
	Phone       string
	Institution string
	GlobusID    string
	Admin       bool
}

// Create は新しいユーザーを作成する。
// セルフ登録は無効で、既存の管理者のみが作成できる。
// 新しいアクセストークンが生成され、結果に含めて返される。
func (s *Service) Create(ctx context.Context, actor *model.User, params CreateParams) (*model.User, error) {
	if !s.authz.CanCreateUser(actor) {
		return nil, model.NewForbiddenError()
	}

	if params.Name == "" {
		return nil, model.NewBadRequestError("Missing name")
	}
	if params.Email == "" {
		return nil, model.NewBadRequestError("Missing email")
	}
	if params.GlobusID == "" {
		return nil, model.NewBadRequestError("Missing globusID")
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:          "user_" + uuid.New().String(),
		Name:        params.Name,
		Email:       params.Email,
		Phone:       params.Phone,
		Institution: params.Institution,
		GlobusID:    params.GlobusID,
		Admin:       params.Admin,
		Token:       auth.NewToken(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewConflictError("Globus ID is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("actor_id", actor.ID),
		slog.Bool("admin", user.Admin),
	)
	return user, nil
}

// Get は指定IDのユーザーを返す。本人または管理者のみ参照できる。
func (s *Service) Get(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	if !s.authz.CanManageUser(actor, id) {
		return nil, model.NewForbiddenError()
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User")
	}
	return user, nil
}

// List は全ユーザーを返す。管理者のみ。
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if actor == nil || !actor.Admin {
		return nil, model.NewForbiddenError()
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update はユーザーの部分更新を行う。
// nilでないフィールドだけが変更され、他のフィールドは以前の値を保つ。
// 管理者フラグの変更は、同一リクエスト内の他フィールドが許可されていても
// 独立に判定され、管理者以外には拒否される。
func (s *Service) Update(ctx context.Context, actor *model.User, id string, update model.UserUpdate) (*model.User, error) {
	// 認可を先に判定し、権限のない呼び出し元には対象の存在有無を漏らさない
	if !s.authz.CanManageUser(actor, id) {
		return nil, model.NewForbiddenError()
	}

	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return nil, model.NewNotFoundError("User")
	}

	// 管理者フラグを変更するリクエストは、他のフィールドを適用する前に
	// 拒否する。対象のフラグは未変更のまま残る。
	if update.Admin != nil && *update.Admin != target.Admin && !s.authz.CanSetAdmin(actor) {
		return nil, model.NewForbiddenError()
	}

	if update.Name != nil {
		target.Name = *update.Name
	}
	if update.Email != nil {
		target.Email = *update.Email
	}
	if update.Phone != nil {
		target.Phone = *update.Phone
	}
	if update.Institution != nil {
		target.Institution = *update.Institution
	}
	if update.Admin != nil {
		target.Admin = *update.Admin
	}
	target.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("user updated",
		slog.String("user_id", target.ID),
		slog.String("actor_id", actor.ID),
	)
	return target, nil
}

// Delete はユーザーを削除する。本人または管理者のみ。
// ユーザーの全Groupメンバーシップはエッジのみカスケード削除され、
// 最後のメンバーを失ったGroupも自動では削除されない。
func (s *Service) Delete(ctx context.Context, actor *model.User, id string) error {
	if !s.authz.CanManageUser(actor, id) {
		return model.NewForbiddenError()
	}

	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return model.NewNotFoundError("User")
	}

	// メンバーシップのエッジを1つずつ取り除く
	memberships, err := s.groups.ListForUser(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list memberships: %w", err)
	}
	for _, group := range memberships {
		if err := s.groups.RemoveMember(ctx, id, group.ID); err != nil {
			return fmt.Errorf("failed to remove membership in group %s: %w", group.ID, err)
		}
	}

	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("User")
	}

	slog.Info("user deleted",
		slog.String("user_id", id),
		slog.String("actor_id", actor.ID),
		slog.Int("memberships_removed", len(memberships)),
	)
	return nil
}

// RotateToken はユーザーのアクセストークンを再発行する。本人または管理者のみ。
// 古いトークンは即座に無効になる。
func (s *Service) RotateToken(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	if !s.authz.CanManageUser(actor, id) {
		return nil, model.NewForbiddenError()
	}

	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return nil, model.NewNotFoundError("User")
	}

	target.Token = auth.NewToken()
	target.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to rotate token: %w", err)
	}

	slog.Info("user token rotated",
		slog.String("user_id", id),
		slog.String("actor_id", actor.ID),
	)
	return target, nil
}
