package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/helmgate/internal/model"
)

// PostgresClusterRepo はPostgreSQLを使用したクラスタリポジトリ。
type PostgresClusterRepo struct {
	db *sql.DB
}

// NewPostgresClusterRepo はPostgresClusterRepoを生成する。
func NewPostgresClusterRepo(db *sql.DB) *PostgresClusterRepo {
	return &PostgresClusterRepo{db: db}
}

// FindByID は指定IDのクラスタを取得する。見つからない場合はnilを返す。
func (r *PostgresClusterRepo) FindByID(ctx context.Context, id string) (*model.Cluster, error) {
	cluster := &model.Cluster{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, group_id, kubeconfig, created_at FROM clusters WHERE id = $1`,
		id,
	).Scan(&cluster.ID, &cluster.Name, &cluster.GroupID, &cluster.Kubeconfig, &cluster.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cluster by ID: %w", err)
	}
	return cluster, nil
}

// Create はクラスタを作成する。名前重複の場合はmodel.ErrDuplicateを返す。
func (r *PostgresClusterRepo) Create(ctx context.Context, cluster *model.Cluster) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clusters (id, name, group_id, kubeconfig, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		cluster.ID, cluster.Name, cluster.GroupID, cluster.Kubeconfig, cluster.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}
	return nil
}

// Delete は指定IDのクラスタを削除する。削除対象が存在した場合はtrueを返す。
func (r *PostgresClusterRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete cluster: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// List は全クラスタをID順で返す。
func (r *PostgresClusterRepo) List(ctx context.Context) ([]*model.Cluster, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, group_id, kubeconfig, created_at FROM clusters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*model.Cluster
	for rows.Next() {
		cluster := &model.Cluster{}
		err := rows.Scan(&cluster.ID, &cluster.Name, &cluster.GroupID,
			&cluster.Kubeconfig, &cluster.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster row: %w", err)
		}
		clusters = append(clusters, cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cluster rows: %w", err)
	}
	return clusters, nil
}

// compile-time interface check
var _ ClusterRepository = (*PostgresClusterRepo)(nil)
