// Package instance はアプリケーションインスタンスのライフサイクルを
// オーケストレーションする。
//
// インストールは「記録してから実体化する」補償付きワークフローで進む。
// レコードの挿入がデプロイより先に行われるため、途中でプロセスが落ちても
// 残るのは最悪「レコードだけの孤児」であり、後からリコンサイルできる。
// 記録のない生きたデプロイは決して作られない。
package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/helmgate/internal/helm"
	"github.com/hitoshi/helmgate/internal/metrics"
	"github.com/hitoshi/helmgate/internal/model"
	"github.com/hitoshi/helmgate/internal/repository"
)

var validTag = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ApplicationResolver はカタログへの問い合わせインターフェース。
type ApplicationResolver interface {
	Resolve(ctx context.Context, selector model.Repository, name string) (*model.Application, error)
	RepoName(selector model.Repository) (string, error)
}

// Authorizer はインスタンス操作の認可判定インターフェース。
type Authorizer interface {
	CanActForGroup(ctx context.Context, actor *model.User, groupID string) (bool, error)
	CanAccessInstance(ctx context.Context, actor *model.User, instance *model.ApplicationInstance) (bool, error)
}

// Service はインスタンスライフサイクルのオーケストレータ。
// リクエスト間で共有する可変状態は持たない。
type Service struct {
	instances repository.InstanceRepository
	groups    repository.GroupRepository
	clusters  repository.ClusterRepository
	recon     repository.ReconciliationRepository
	apps      ApplicationResolver
	runner    helm.Runner
	authz     Authorizer
	collector metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	instances repository.InstanceRepository,
	groups repository.GroupRepository,
	clusters repository.ClusterRepository,
	recon repository.ReconciliationRepository,
	apps ApplicationResolver,
	runner helm.Runner,
	authz Authorizer,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		instances: instances,
		groups:    groups,
		clusters:  clusters,
		recon:     recon,
		apps:      apps,
		runner:    runner,
		authz:     authz,
		collector: collector,
	}
}

// InstallParams はインストール要求の入力を表す。
type InstallParams struct {
	Application   string
	Repository    model.Repository
	GroupID       string
	ClusterID     string
	Tag           string
	Configuration string
}

// InstallResult はインストール成功時の結果を表す。
type InstallResult struct {
	Instance *model.ApplicationInstance
	Summary  model.InstanceSummary
}

// Install はアプリケーションインスタンスをインストールする。
//
// 検証 → カタログ解決 → 認可 → 参照解決 → レコード作成（仮） →
// デプロイ → 確定、の順で進み、デプロイ失敗時は仮レコードを補償削除して
// ロールバックする。
func (s *Service) Install(ctx context.Context, actor *model.User, params InstallParams) (*InstallResult, error) {
	// 引用符を含む名前はコマンド引数として安全に扱えないため最初に拒否する
	if strings.Contains(params.Application, "'") {
		return nil, model.NewBadRequestError("Application names cannot contain single quote characters")
	}

	app, err := s.apps.Resolve(ctx, params.Repository, params.Application)
	if err != nil {
		return nil, err
	}
	repo, err := s.apps.RepoName(params.Repository)
	if err != nil {
		return nil, err
	}

	if actor == nil {
		return nil, model.NewForbiddenError()
	}

	if params.GroupID == "" {
		return nil, model.NewBadRequestError("Missing vo")
	}
	if params.ClusterID == "" {
		return nil, model.NewBadRequestError("Missing cluster")
	}
	if params.Tag != "" && !validTag.MatchString(params.Tag) {
		return nil, model.NewBadRequestError("Invalid tag")
	}

	group, err := s.groups.FindByID(ctx, params.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return nil, model.NewBadRequestError("Invalid vo")
	}
	cluster, err := s.clusters.FindByID(ctx, params.ClusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to find cluster: %w", err)
	}
	if cluster == nil {
		return nil, model.NewBadRequestError("Invalid cluster")
	}
	if cluster.GroupID != group.ID {
		return nil, model.NewBadRequestError("Cluster does not belong to the specified vo")
	}

	member, err := s.authz.CanActForGroup(ctx, actor, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize install: %w", err)
	}
	if !member {
		return nil, model.NewForbiddenError()
	}

	config, err := normalizeConfig(params.Configuration)
	if err != nil {
		return nil, err
	}

	name := app.Name
	if params.Tag != "" {
		name = app.Name + "-" + params.Tag
	}
	// 実際に保存・デプロイされる合成後の名前で長さを測る
	if len(name) > model.InstanceNameMaxLength {
		return nil, model.NewBadRequestError("Instance name exceeds the 63 character limit")
	}

	instance := &model.ApplicationInstance{
		ID:          "instance_" + uuid.New().String(),
		Name:        name,
		Application: app.Name,
		GroupID:     group.ID,
		ClusterID:   cluster.ID,
		Config:      config,
		Valid:       true,
		CreatedAt:   time.Now().UTC(),
	}

	// 仮レコードの挿入。一意制約の判定はストアのアトミックな挿入に委ねる
	if err := s.instances.Create(ctx, instance); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewConflictError("Instance name is already in use within the Group")
		}
		slog.Error("tentative record insert failed",
			slog.String("instance_name", name),
			slog.String("error", err.Error()),
		)
		s.collector.RecordInstallFailure(app.Name, "store")
		return nil, model.NewInternalError()
	}

	valuesPath, cleanup, err := helm.WriteValuesFile(instance.Config)
	if err != nil {
		slog.Error("values file setup failed", slog.String("error", err.Error()))
		s.rollback(ctx, instance)
		s.collector.RecordInstallFailure(app.Name, "transport")
		return nil, model.NewInternalError()
	}
	defer cleanup()

	start := time.Now()
	result, err := s.runner.Run(ctx, cluster.Kubeconfig,
		"install", repo+"/"+app.Name,
		"--name", instance.Name,
		"--namespace", group.NamespaceName(),
		"--values", valuesPath,
	)
	s.collector.RecordHelmLatency("install", time.Since(start))
	if err != nil {
		// トランスポート障害もデプロイ失敗と同じロールバック経路を通る
		slog.Error("deploy invocation failed",
			slog.String("instance_id", instance.ID),
			slog.String("error", err.Error()),
		)
		s.rollback(ctx, instance)
		s.collector.RecordInstallFailure(app.Name, "transport")
		return nil, model.NewInternalError()
	}

	outcome := helm.ParseInstallOutput(result.Output())
	if !outcome.Deployed {
		slog.Warn("deploy rejected by helm",
			slog.String("instance_id", instance.ID),
			slog.String("diagnostic", outcome.Diagnostic),
		)
		s.rollback(ctx, instance)
		s.collector.RecordInstallFailure(app.Name, "deploy_failed")
		return nil, model.NewDeployFailedError(outcome.Diagnostic)
	}

	s.collector.RecordInstallSuccess(app.Name)
	slog.Info("instance installed",
		slog.String("instance_id", instance.ID),
		slog.String("instance_name", instance.Name),
		slog.String("group_id", group.ID),
		slog.String("cluster_id", cluster.ID),
		slog.String("actor_id", actor.ID),
	)

	return &InstallResult{
		Instance: instance,
		Summary:  s.fetchSummary(ctx, cluster.Kubeconfig, instance),
	}, nil
}

// fetchSummary はデプロイ直後のリビジョンと更新時刻を問い合わせる。
// インストール自体は既に成功しているため、ここでの失敗は結果を空にする
// だけでエラーにはしない。
func (s *Service) fetchSummary(ctx context.Context, kubeconfig string, instance *model.ApplicationInstance) model.InstanceSummary {
	start := time.Now()
	result, err := s.runner.Run(ctx, kubeconfig, "list", instance.Name)
	s.collector.RecordHelmLatency("list", time.Since(start))
	if err != nil {
		slog.Warn("post-deploy summary query failed",
			slog.String("instance_id", instance.ID),
			slog.String("error", err.Error()),
		)
		return model.InstanceSummary{}
	}
	summary, err := helm.ParseStatusSummary(result.Output())
	if err != nil {
		slog.Warn("post-deploy summary not understood",
			slog.String("instance_id", instance.ID),
			slog.String("error", err.Error()),
		)
		return model.InstanceSummary{}
	}
	return summary
}

// rollback は仮レコードを補償削除する。ベストエフォートで、失敗した場合は
// 不整合（レコードあり・デプロイなし）をリコンシリエーションログに残して
// 運用側に委ねる。ここで無限に再試行はしない。
func (s *Service) rollback(ctx context.Context, instance *model.ApplicationInstance) {
	s.collector.RecordRollback()
	if _, err := s.instances.Delete(ctx, instance.ID); err != nil {
		slog.Error("compensating delete failed, orphan record left behind",
			slog.String("instance_id", instance.ID),
			slog.String("error", err.Error()),
		)
		if recErr := s.recon.Record(ctx, instance.ID, "delete", err.Error()); recErr != nil {
			slog.Error("failed to record reconciliation entry",
				slog.String("instance_id", instance.ID),
				slog.String("error", recErr.Error()),
			)
		}
	}
}

// Get は指定IDのインスタンスを返す。所有Groupのメンバーまたは管理者のみ。
func (s *Service) Get(ctx context.Context, actor *model.User, id string) (*model.ApplicationInstance, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}
	instance, err := s.instances.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find instance: %w", err)
	}
	if instance == nil {
		return nil, model.NewNotFoundError("Application instance")
	}
	ok, err := s.authz.CanAccessInstance(ctx, actor, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize instance access: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError()
	}
	return instance, nil
}

// List は呼び出し元が参照できるインスタンス一覧を返す。
// 管理者は全件、それ以外は所属Groupのものだけが見える。
// groupID/clusterIDが空でなければその値で絞り込む。
func (s *Service) List(ctx context.Context, actor *model.User, groupID, clusterID string) ([]*model.ApplicationInstance, error) {
	if actor == nil {
		return nil, model.NewForbiddenError()
	}

	var (
		instances []*model.ApplicationInstance
		err       error
	)
	if actor.Admin {
		instances, err = s.instances.List(ctx)
	} else {
		instances, err = s.instances.ListForUser(ctx, actor.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	if groupID == "" && clusterID == "" {
		return instances, nil
	}
	filtered := make([]*model.ApplicationInstance, 0, len(instances))
	for _, inst := range instances {
		if groupID != "" && inst.GroupID != groupID {
			continue
		}
		if clusterID != "" && inst.ClusterID != clusterID {
			continue
		}
		filtered = append(filtered, inst)
	}
	return filtered, nil
}

// Delete はインスタンスを削除する。所有Groupのメンバーまたは管理者のみ。
//
// 先にクラスタ上のリリースを削除し、成功した場合のみレコードを取り除く。
// 実体の削除に失敗した場合はレコードを残したままInternalErrorを返し、
// 所有情報を失わないようにする。対象のリリースが既に存在しない場合は
// レコード削除に進む。
func (s *Service) Delete(ctx context.Context, actor *model.User, id string) error {
	if actor == nil {
		return model.NewForbiddenError()
	}

	instance, err := s.instances.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find instance: %w", err)
	}
	if instance == nil {
		return model.NewNotFoundError("Application instance")
	}

	ok, err := s.authz.CanAccessInstance(ctx, actor, instance)
	if err != nil {
		return fmt.Errorf("failed to authorize instance access: %w", err)
	}
	if !ok {
		return model.NewForbiddenError()
	}

	cluster, err := s.clusters.FindByID(ctx, instance.ClusterID)
	if err != nil {
		return fmt.Errorf("failed to find cluster: %w", err)
	}
	if cluster == nil {
		slog.Error("instance references a missing cluster",
			slog.String("instance_id", id),
			slog.String("cluster_id", instance.ClusterID),
		)
		return model.NewInternalError()
	}

	start := time.Now()
	result, err := s.runner.Run(ctx, cluster.Kubeconfig, "delete", "--purge", instance.Name)
	s.collector.RecordHelmLatency("delete", time.Since(start))
	if err != nil {
		slog.Error("delete invocation failed",
			slog.String("instance_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewInternalError()
	}
	if removed, diagnostic := helm.ParseDeleteOutput(result.Output()); !removed {
		slog.Error("helm refused to delete release",
			slog.String("instance_id", id),
			slog.String("diagnostic", diagnostic),
		)
		return model.NewInternalError()
	}

	deleted, err := s.instances.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete instance record: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("Application instance")
	}

	slog.Info("instance deleted",
		slog.String("instance_id", id),
		slog.String("instance_name", instance.Name),
		slog.String("actor_id", actor.ID),
	)
	return nil
}

// normalizeConfig は設定ペイロードを正規化する。
// コメントや書式だけのコンテンツは落とし、正規化後に空になった場合は
// ストアが空文字列を拒否するためプレースホルダ（改行1文字）に置き換える。
func normalizeConfig(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "\n", nil
	}

	var doc any
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return "", model.NewBadRequestError("Invalid configuration")
	}
	if doc == nil {
		return "\n", nil
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render configuration: %w", err)
	}
	if strings.TrimSpace(string(out)) == "" {
		return "\n", nil
	}
	return string(out), nil
}
