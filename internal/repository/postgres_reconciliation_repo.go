package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresReconciliationRepo はPostgreSQLを使用した不整合記録リポジトリ。
type PostgresReconciliationRepo struct {
	db *sql.DB
}

// NewPostgresReconciliationRepo はPostgresReconciliationRepoを生成する。
func NewPostgresReconciliationRepo(db *sql.DB) *PostgresReconciliationRepo {
	return &PostgresReconciliationRepo{db: db}
}

// Record は不整合イベントを記録する。
// 補償削除の失敗など、インラインでは解消できない不整合を外部の
// リコンシリエーションプロセスへ引き渡すために残す。
func (r *PostgresReconciliationRepo) Record(ctx context.Context, instanceID, action, detail string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reconciliation_log (instance_id, action, detail)
		 VALUES ($1, $2, $3)`,
		instanceID, action, detail,
	)
	if err != nil {
		return fmt.Errorf("failed to record reconciliation event: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReconciliationRepository = (*PostgresReconciliationRepo)(nil)
