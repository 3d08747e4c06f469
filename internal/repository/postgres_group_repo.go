package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/helmgate/internal/model"
)

// PostgresGroupRepo はPostgreSQLを使用したGroupリポジトリ。
type PostgresGroupRepo struct {
	db *sql.DB
}

// NewPostgresGroupRepo はPostgresGroupRepoを生成する。
func NewPostgresGroupRepo(db *sql.DB) *PostgresGroupRepo {
	return &PostgresGroupRepo{db: db}
}

// FindByID は指定IDのGroupを取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindByID(ctx context.Context, id string) (*model.Group, error) {
	group := &model.Group{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, science_field, created_at FROM groups WHERE id = $1`,
		id,
	).Scan(&group.ID, &group.Name, &group.ScienceField, &group.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find group by ID: %w", err)
	}
	return group, nil
}

// Create はGroupを作成する。名前重複の場合はmodel.ErrDuplicateを返す。
func (r *PostgresGroupRepo) Create(ctx context.Context, group *model.Group) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, science_field, created_at)
		 VALUES ($1, $2, $3, $4)`,
		group.ID, group.Name, group.ScienceField, group.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// Delete は指定IDのGroupを削除する。削除対象が存在した場合はtrueを返す。
func (r *PostgresGroupRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// List は全GroupをID順で返す。
func (r *PostgresGroupRepo) List(ctx context.Context) ([]*model.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, science_field, created_at FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		group := &model.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.ScienceField, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group rows: %w", err)
	}
	return groups, nil
}

// IsMember はユーザーがGroupのメンバーかどうかを返す。
func (r *PostgresGroupRepo) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM group_memberships WHERE user_id = $1 AND group_id = $2
		)`,
		userID, groupID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// AddMember はメンバーシップのエッジを作成する。既存の場合はmodel.ErrDuplicateを返す。
func (r *PostgresGroupRepo) AddMember(ctx context.Context, userID, groupID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_memberships (user_id, group_id) VALUES ($1, $2)`,
		userID, groupID,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// RemoveMember はメンバーシップのエッジを削除する。
// エッジが存在しない場合もエラーにはしない。
func (r *PostgresGroupRepo) RemoveMember(ctx context.Context, userID, groupID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE user_id = $1 AND group_id = $2`,
		userID, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

// ListMembers はGroupのメンバー一覧をID順で返す。
func (r *PostgresGroupRepo) ListMembers(ctx context.Context, groupID string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.phone, u.institution, u.globus_id, u.admin, u.token, u.created_at, u.updated_at
		 FROM users u
		 JOIN group_memberships m ON m.user_id = u.id
		 WHERE m.group_id = $1
		 ORDER BY u.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Phone,
			&user.Institution, &user.GlobusID, &user.Admin, &user.Token,
			&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member rows: %w", err)
	}
	return users, nil
}

// ListForUser はユーザーが所属するGroup一覧をID順で返す。
func (r *PostgresGroupRepo) ListForUser(ctx context.Context, userID string) ([]*model.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.science_field, g.created_at
		 FROM groups g
		 JOIN group_memberships m ON m.group_id = g.id
		 WHERE m.user_id = $1
		 ORDER BY g.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for user: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		group := &model.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.ScienceField, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group rows: %w", err)
	}
	return groups, nil
}

// compile-time interface check
var _ GroupRepository = (*PostgresGroupRepo)(nil)
