package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/helmgate/internal/model"
)

// PostgresInstanceRepo はPostgreSQLを使用したインスタンスリポジトリ。
type PostgresInstanceRepo struct {
	db *sql.DB
}

// NewPostgresInstanceRepo はPostgresInstanceRepoを生成する。
func NewPostgresInstanceRepo(db *sql.DB) *PostgresInstanceRepo {
	return &PostgresInstanceRepo{db: db}
}

const instanceColumns = `id, name, application, group_id, cluster_id, config, valid, created_at`

// FindByID は指定IDのインスタンスを取得する。見つからない場合はnilを返す。
func (r *PostgresInstanceRepo) FindByID(ctx context.Context, id string) (*model.ApplicationInstance, error) {
	instance := &model.ApplicationInstance{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM instances WHERE id = $1`,
		id,
	).Scan(&instance.ID, &instance.Name, &instance.Application, &instance.GroupID,
		&instance.ClusterID, &instance.Config, &instance.Valid, &instance.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find instance by ID: %w", err)
	}
	return instance, nil
}

// Create はインスタンスレコードをアトミックに挿入する。
// 一意制約（ID、または同一Group内の表示名）に違反する場合は上書きせず
// model.ErrDuplicateを返す。並行する書き込みの勝敗はこのINSERTが決める。
func (r *PostgresInstanceRepo) Create(ctx context.Context, instance *model.ApplicationInstance) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO instances (id, name, application, group_id, cluster_id, config, valid, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		instance.ID, instance.Name, instance.Application, instance.GroupID,
		instance.ClusterID, instance.Config, instance.Valid, instance.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	return nil
}

// Delete は指定IDのインスタンスを削除する。削除対象が存在した場合はtrueを返す。
// 存在しないIDの削除はエラーではない（補償削除を冪等にするため）。
func (r *PostgresInstanceRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete instance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// List は全インスタンスを作成時刻順で返す。
func (r *PostgresInstanceRepo) List(ctx context.Context) ([]*model.ApplicationInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM instances ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()
	return scanInstances(rows)
}

// ListForUser はユーザーが所属するGroupのインスタンス一覧を返す。
func (r *PostgresInstanceRepo) ListForUser(ctx context.Context, userID string) ([]*model.ApplicationInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.name, i.application, i.group_id, i.cluster_id, i.config, i.valid, i.created_at
		 FROM instances i
		 JOIN group_memberships m ON m.group_id = i.group_id
		 WHERE m.user_id = $1
		 ORDER BY i.created_at, i.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances for user: %w", err)
	}
	defer rows.Close()
	return scanInstances(rows)
}

// scanInstances は結果セットをインスタンスのスライスに読み込む。
func scanInstances(rows *sql.Rows) ([]*model.ApplicationInstance, error) {
	var instances []*model.ApplicationInstance
	for rows.Next() {
		instance := &model.ApplicationInstance{}
		err := rows.Scan(&instance.ID, &instance.Name, &instance.Application,
			&instance.GroupID, &instance.ClusterID, &instance.Config,
			&instance.Valid, &instance.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance row: %w", err)
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate instance rows: %w", err)
	}
	return instances, nil
}

// compile-time interface check
var _ InstanceRepository = (*PostgresInstanceRepo)(nil)
