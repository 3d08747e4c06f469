// Package reconcile は補償削除に失敗した孤児レコードの後始末ジョブを提供する。
// インストールのロールバック時に仮レコードを削除できなかった場合、
// reconciliation_logにイベントが残る。このジョブが定期的にログを走査し、
// 残っているインスタンスレコードを削除してログを解消する。
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Sweeper は未解消の補償削除を再実行するバッチジョブ。
// 冪等で、対象がない場合は何もしない。
type Sweeper struct {
	db     Executor
	logger *slog.Logger
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(db Executor, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		db:     db,
		logger: logger,
	}
}

// Run は補償削除の再実行を1回分行う。
// ログに記録されたインスタンスレコードのうち残っているものを削除し、
// 解消済みのログエントリを片付ける。
func (s *Sweeper) Run(ctx context.Context) error {
	start := time.Now()

	// 1. 補償削除に失敗して残ったレコードを削除する
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM instances
		 WHERE id IN (SELECT instance_id FROM reconciliation_log WHERE action = 'delete')`,
	)
	if err != nil {
		s.logger.Error("reconciliation sweep failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete orphaned instance records: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	// 2. レコードが消えたエントリをログから取り除く
	resolved, err := s.db.ExecContext(ctx,
		`DELETE FROM reconciliation_log
		 WHERE action = 'delete'
		   AND instance_id NOT IN (SELECT id FROM instances)`,
	)
	if err != nil {
		s.logger.Error("reconciliation log cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to resolve reconciliation log entries: %w", err)
	}

	resolvedCount, err := resolved.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	duration := time.Since(start)
	if deletedCount > 0 || resolvedCount > 0 {
		s.logger.Info("reconciliation sweep completed",
			slog.Int64("deleted_count", deletedCount),
			slog.Int64("resolved_count", resolvedCount),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
	}

	return nil
}
