// Package cluster は管理対象クラスタの登録・削除を提供する。
package cluster

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

const nameMaxLength = 63

var validName = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Authorizer はクラスタ操作の認可判定インターフェース。
type Authorizer interface {
	CanActForGroup(ctx context.Context, actor *model.User, groupID string) (bool, error)
}

// Service はクラスタ管理のビジネスロジックを提供する。
// kubeconfigは登録時に受け取るのみで、参照系の結果には決して含めない。
type Service struct {
	clusters  repository.ClusterRepository
	groups    repository.GroupRepository
	instances repository.InstanceRepository
	authz     Authorizer
}

// NewService はServiceを生成する。
func NewService(
	clusters repository.ClusterRepository,
	groups repository.GroupRepository,
	instances repository.InstanceRepository,
	authz Authorizer,
) *Service {
	return &Service{clusters: clusters, groups: groups, instances: instances, authz: authz}
}

// CreateParams はクラスタ登録の入力を表す。
type CreateParams struct {
	Name       string
	GroupID    string
	Kubeconfig string
}

// Create はクラスタを所有Groupの配下に登録する。
// 所有Groupのメンバーのみが登録できる。
func (s *Service) Create(ctx context.Context, actor *model.User, params CreateParams) (*model.Cluster, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	if params.Name == "" {
		return nil, model.NewBadRequestError("Missing name")
	}
	if len(params.Name) > nameMaxLength || !validName.MatchString(params.Name) {
		return nil, model.NewBadRequestError("Invalid name")
	}
	if params.GroupID == "" {
		return nil, model.NewBadRequestError("Missing group")
	}
	if params.Kubeconfig == "" {
		return nil, model.NewBadRequestError("Missing kubeconfig")
	}

	group, err := s.groups.FindByID(ctx, params.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return nil, model.NewBadRequestError("Invalid group")
	}

	if err := s.authorize(ctx, actor, group.ID); err != nil {
		return nil, err
	}

	cluster := &model.Cluster{
		ID:         "cluster_" + uuid.New().String(),
		Name:       params.Name,
		GroupID:    group.ID,
		Kubeconfig: params.Kubeconfig,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.clusters.Create(ctx, cluster); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewConflictError("Cluster name is already in use")
		}
		return nil, fmt.Errorf("failed to create cluster: %w", err)
	}

	slog.Info("cluster registered",
		slog.String("cluster_id", cluster.ID),
		slog.String("cluster_name", cluster.Name),
		slog.String("group_id", group.ID),
		slog.String("actor_id", actor.ID),
	)
	return cluster, nil
}

// Get は指定IDのクラスタを返す。認証済みであれば誰でも参照できる。
// 戻り値にはkubeconfigが含まれるため、APIレスポンスへ直接渡してはならない。
func (s *Service) Get(ctx context.Context, actor *model.User, id string) (*model.Cluster, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	cluster, err := s.clusters.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find cluster: %w", err)
	}
	if cluster == nil {
		return nil, model.NewNotFoundError("Cluster")
	}
	return cluster, nil
}

// List は全クラスタを返す。認証済みであれば誰でも参照できる。
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.Cluster, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	clusters, err := s.clusters.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return clusters, nil
}

// Delete はクラスタの登録を解除する。所有Groupのメンバーまたは管理者のみ。
// インスタンスが残っている間は拒否される。
func (s *Service) Delete(ctx context.Context, actor *model.User, id string) error {
	if actor == nil {
		return model.NewForbiddenError()
	}

	cluster, err := s.clusters.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find cluster: %w", err)
	}
	if cluster == nil {
		// 非管理者には所有関係を判定できないため存在有無も返さない
		if !actor.Admin {
			return model.NewForbiddenError()
		}
		return model.NewNotFoundError("Cluster")
	}

	if err := s.authorize(ctx, actor, cluster.GroupID); err != nil {
		return err
	}

	instances, err := s.instances.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list instances: %w", err)
	}
	for _, inst := range instances {
		if inst.ClusterID == id {
			return model.NewConflictError("Cluster still hosts application instances")
		}
	}

	deleted, err := s.clusters.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("Cluster")
	}

	slog.Info("cluster deleted",
		slog.String("cluster_id", id),
		slog.String("actor_id", actor.ID),
	)
	return nil
}

func (s *Service) authorize(ctx context.Context, actor *model.User, groupID string) error {
	if actor.Admin {
		return nil
	}
	ok, err := s.authz.CanActForGroup(ctx, actor, groupID)
	if err != nil {
		return fmt.Errorf("failed to authorize cluster action: %w", err)
	}
	if !ok {
		return model.NewForbiddenError()
	}
	return nil
}
