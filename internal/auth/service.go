// Package auth はトークン認証とアクション認可（Authorization Guard）を提供する。
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/helmgate/internal/model"
	"github.com/hitoshi/helmgate/internal/repository"
)

// UserFinder は認証に必要なリポジトリインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByToken(ctx context.Context, token string) (*model.User, error)
}

// MembershipChecker は所有権判定に必要なリポジトリインターフェース。
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
}

// Service は認証・認可の判定を提供する。
// 判定に使う状態はすべてストアにあり、Service自体はリクエスト間で
// 可変状態を持たない。
type Service struct {
	users  UserFinder
	groups MembershipChecker
}

// NewService はServiceを生成する。
func NewService(users UserFinder, groups MembershipChecker) *Service {
	return &Service{users: users, groups: groups}
}

// Authenticate は提示されたトークンからユーザーを解決する。
// トークンが空または未知の場合はnilを返す（匿名扱い）。
// 「ユーザーが存在しない」と「トークンが違う」は区別されない。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	user, err := s.users.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate token: %w", err)
	}
	return user, nil
}

// CanCreateUser はユーザー作成の認可判定。既存の管理者のみが許可される
// （セルフ登録は無効）。
func (s *Service) CanCreateUser(actor *model.User) bool {
	return actor != nil && actor.Admin
}

// CanManageUser はユーザーの更新・削除・詳細参照の認可判定。
// 本人（セルフサービス）または管理者のみが許可される。
func (s *Service) CanManageUser(actor *model.User, targetUserID string) bool {
	if actor == nil {
		return false
	}
	return actor.Admin || actor.ID == targetUserID
}

// CanSetAdmin は管理者フラグをtrueへ昇格させる操作の認可判定。
// 管理者のみが許可され、非管理者は自分自身に対しても拒否される。
// 同一リクエスト内の他フィールドが許可されていても、この判定は独立に行う。
func (s *Service) CanSetAdmin(actor *model.User) bool {
	return actor != nil && actor.Admin
}

// CanActForGroup はGroupに代わって操作する（インスタンスのインストール等）
// 認可判定。アクターがそのGroupのメンバーであることを要求する。
func (s *Service) CanActForGroup(ctx context.Context, actor *model.User, groupID string) (bool, error) {
	if actor == nil {
		return false, nil
	}
	ok, err := s.groups.IsMember(ctx, actor.ID, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return ok, nil
}

// CanAccessInstance はインスタンスの削除・詳細参照の認可判定。
// 所有Groupのメンバーまたは管理者のみが許可される。
func (s *Service) CanAccessInstance(ctx context.Context, actor *model.User, instance *model.ApplicationInstance) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.Admin {
		return true, nil
	}
	return s.CanActForGroup(ctx, actor, instance.GroupID)
}

// NewToken は新しいアクセストークンを生成する。
// トークン空間は衝突を実用上無視できる大きさ。
func NewToken() string {
	return uuid.New().String()
}

// 部分集合インターフェースが本体と整合していることのcompile-time check
var (
	_ UserFinder        = (repository.UserRepository)(nil)
	_ MembershipChecker = (repository.GroupRepository)(nil)
)
