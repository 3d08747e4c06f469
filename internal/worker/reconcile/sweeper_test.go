package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// --- モック ---

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type mockExecutor struct {
	queries []string
	results []sql.Result
	err     error
}

func (m *mockExecutor) ExecContext(_ context.Context, query string, _ ...interface{}) (sql.Result, error) {
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.queries) - 1
	if idx < len(m.results) {
		return m.results[idx], nil
	}
	return fakeResult{}, nil
}

// --- テスト ---

func TestSweeper_DeletesOrphansThenResolvesLog(t *testing.T) {
	exec := &mockExecutor{
		results: []sql.Result{fakeResult{affected: 2}, fakeResult{affected: 2}},
	}
	sweeper := NewSweeper(exec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := sweeper.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(exec.queries) != 2 {
		t.Fatalf("executed %d queries, want 2", len(exec.queries))
	}
	if !strings.Contains(exec.queries[0], "DELETE FROM instances") {
		t.Errorf("first query should delete orphaned instances: %q", exec.queries[0])
	}
	if !strings.Contains(exec.queries[1], "DELETE FROM reconciliation_log") {
		t.Errorf("second query should resolve log entries: %q", exec.queries[1])
	}
}

func TestSweeper_NothingToDoIsNotAnError(t *testing.T) {
	exec := &mockExecutor{}
	sweeper := NewSweeper(exec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := sweeper.Run(context.Background()); err != nil {
		t.Fatalf("Run failed on empty sweep: %v", err)
	}
}

func TestSweeper_PropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	exec := &mockExecutor{err: storeErr}
	sweeper := NewSweeper(exec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := sweeper.Run(context.Background())
	if err == nil || !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want wrapped %v", err, storeErr)
	}
	if len(exec.queries) != 1 {
		t.Errorf("executed %d queries, want 1 (stop on first failure)", len(exec.queries))
	}
}
