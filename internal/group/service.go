// Package group はGroup（VO）とメンバーシップの管理を提供する。
package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/helmgate/internal/model"
	"github.com/hitoshi/helmgate/internal/repository"
)

// Group名はネームスペース名（vo-<name>）に使われるため、DNSラベルとして
// 有効な形式に制限する。上限はネームスペースの63文字制限からプレフィックス
// 分を引いた長さ。
const nameMaxLength = 60

var validName = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Authorizer はGroup操作の認可判定インターフェース。
type Authorizer interface {
	CanActForGroup(ctx context.Context, actor *model.User, groupID string) (bool, error)
	CanManageUser(actor *model.User, targetUserID string) bool
}

// Service はGroup管理のビジネスロジックを提供する。
type Service struct {
	groups    repository.GroupRepository
	users     repository.UserRepository
	clusters  repository.ClusterRepository
	instances repository.InstanceRepository
	authz     Authorizer
}

// NewService はServiceを生成する。
func NewService(
	groups repository.GroupRepository,
	users repository.UserRepository,
	clusters repository.ClusterRepository,
	instances repository.InstanceRepository,
	authz Authorizer,
) *Service {
	return &Service{groups: groups, users: users, clusters: clusters, instances: instances, authz: authz}
}

// CreateParams はGroup作成の入力を表す。
type CreateParams struct {
	Name         string
	ScienceField string
}

// Create は新しいGroupを作成し、作成者を最初のメンバーとして登録する。
// 認証済みであれば誰でも作成できる。
func (s *Service) Create(ctx context.Context, actor *model.User, params CreateParams) (*model.Group, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	if params.Name == "" {
		return nil, model.NewBadRequestError("Missing name")
	}
	if len(params.Name) > nameMaxLength || !validName.MatchString(params.Name) {
		return nil, model.NewBadRequestError("Invalid name")
	}

	group := &model.Group{
		ID:           "group_" + uuid.New().String(),
		Name:         params.Name,
		ScienceField: params.ScienceField,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.groups.Create(ctx, group); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewConflictError("Group name is already in use")
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	if err := s.groups.AddMember(ctx, actor.ID, group.ID); err != nil {
		return nil, fmt.Errorf("failed to add creator as member: %w", err)
	}

	slog.Info("group created",
		slog.String("group_id", group.ID),
		slog.String("group_name", group.Name),
		slog.String("actor_id", actor.ID),
	)
	return group, nil
}

// Get は指定IDのGroupを返す。認証済みであれば誰でも参照できる。
func (s *Service) Get(ctx context.Context, actor *model.User, id string) (*model.Group, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return nil, model.NewNotFoundError("Group")
	}
	return group, nil
}

// List は全Groupを返す。認証済みであれば誰でも参照できる。
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.Group, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// Delete はGroupを削除する。メンバーまたは管理者のみ。
// Groupの削除は常に明示的な操作で、クラスタやインスタンスが残っている間は
// 拒否される。メンバーシップのエッジは削除と同時に取り除かれる。
func (s *Service) Delete(ctx context.Context, actor *model.User, id string) error {
	if err := s.authorize(ctx, actor, id); err != nil {
		return err
	}

	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return model.NewNotFoundError("Group")
	}

	owned, err := s.ownsResources(ctx, id)
	if err != nil {
		return err
	}
	if owned {
		return model.NewConflictError("Group still owns clusters or application instances")
	}

	deleted, err := s.groups.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("Group")
	}

	slog.Info("group deleted",
		slog.String("group_id", id),
		slog.String("actor_id", actor.ID),
	)
	return nil
}

// AddMember はユーザーをGroupのメンバーに加える。
// 既存メンバーまたは管理者のみが追加できる。
func (s *Service) AddMember(ctx context.Context, actor *model.User, userID, groupID string) error {
	if err := s.authorize(ctx, actor, groupID); err != nil {
		return err
	}

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return model.NewNotFoundError("Group")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("User")
	}

	if err := s.groups.AddMember(ctx, userID, groupID); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return model.NewConflictError("User is already a member of the group")
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	slog.Info("group member added",
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
		slog.String("actor_id", actor.ID),
	)
	return nil
}

// RemoveMember はユーザーをGroupから外す。
// 既存メンバーまたは管理者のみが実行できる。最後のメンバーを外しても
// Group自体は残る。
func (s *Service) RemoveMember(ctx context.Context, actor *model.User, userID, groupID string) error {
	if err := s.authorize(ctx, actor, groupID); err != nil {
		return err
	}

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return model.NewNotFoundError("Group")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("User")
	}

	if err := s.groups.RemoveMember(ctx, userID, groupID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	slog.Info("group member removed",
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
		slog.String("actor_id", actor.ID),
	)
	return nil
}

// ListMembers はGroupのメンバー一覧を返す。認証済みであれば誰でも参照できる。
func (s *Service) ListMembers(ctx context.Context, actor *model.User, groupID string) ([]*model.User, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return nil, model.NewNotFoundError("Group")
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ListForUser はユーザーが所属するGroup一覧を返す。本人または管理者のみ。
func (s *Service) ListForUser(ctx context.Context, actor *model.User, userID string) ([]*model.Group, error) {
	if !s.authz.CanManageUser(actor, userID) {
		return nil, model.NewForbiddenError()
	}
	groups, err := s.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for user: %w", err)
	}
	return groups, nil
}

// authorize はGroupへの変更操作の認可を判定する。
// メンバーでも管理者でもない呼び出し元には、Groupの存在有無を漏らさず
// Forbiddenを返す。
func (s *Service) authorize(ctx context.Context, actor *model.User, groupID string) error {
	if actor == nil {
		return model.NewForbiddenError()
	}
	if actor.Admin {
		return nil
	}
	ok, err := s.authz.CanActForGroup(ctx, actor, groupID)
	if err != nil {
		return fmt.Errorf("failed to authorize group action: %w", err)
	}
	if !ok {
		return model.NewForbiddenError()
	}
	return nil
}

// ownsResources はGroupがクラスタまたはインスタンスを所有しているかを返す。
func (s *Service) ownsResources(ctx context.Context, groupID string) (bool, error) {
	clusters, err := s.clusters.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list clusters: %w", err)
	}
	for _, c := range clusters {
		if c.GroupID == groupID {
			return true, nil
		}
	}
	instances, err := s.instances.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list instances: %w", err)
	}
	for _, inst := range instances {
		if inst.GroupID == groupID {
			return true, nil
		}
	}
	return false, nil
}
