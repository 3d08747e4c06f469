// Package repository はデータ永続化のインターフェースを定義する。
// オーケストレータが永続ストアに要求する契約（Entity Store Facade）であり、
// 具体的なストレージ技術からは独立している。
package repository

import (
	"context"

	"github.com/hitoshi/helmgate/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByToken はアクセストークンでユーザーを検索する。
	// 見つからない場合はnilを返す。認証経路で使用する。
	FindByToken(ctx context.Context, token string) (*model.User, error)

	// Create はユーザーを作成する。
	// globus_idまたはtokenの一意制約に違反する場合はmodel.ErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーの全属性を書き込む。
	// 部分更新はサービス層が取得済みレコードへパッチを適用した上で呼び出す。
	Update(ctx context.Context, user *model.User) error

	// Delete は指定IDのユーザーを削除する。
	// Groupメンバーシップのエッジは外部キーでCASCADE削除される。
	// 削除対象が存在した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)
}

// GroupRepository はGroup（VO）とメンバーシップの永続化インターフェース。
type GroupRepository interface {
	// FindByID は指定IDのGroupを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Group, error)

	// Create はGroupを作成する。名前重複の場合はmodel.ErrDuplicateを返す。
	Create(ctx context.Context, group *model.Group) error

	// Delete は指定IDのGroupを削除する。削除対象が存在した場合はtrueを返す。
	// Groupの削除は常に明示的で、メンバーが0になっても自動では削除されない。
	Delete(ctx context.Context, id string) (bool, error)

	// List は全Groupを返す。
	List(ctx context.Context) ([]*model.Group, error)

	// IsMember はユーザーがGroupのメンバーかどうかを返す。
	IsMember(ctx context.Context, userID, groupID string) (bool, error)

	// AddMember はメンバーシップのエッジを作成する。既存の場合はmodel.ErrDuplicateを返す。
	AddMember(ctx context.Context, userID, groupID string) error

	// RemoveMember はメンバーシップのエッジを削除する。
	// エッジが存在しなくてもエラーにはしない。
	RemoveMember(ctx context.Context, userID, groupID string) error

	// ListMembers はGroupのメンバー一覧を返す。
	ListMembers(ctx context.Context, groupID string) ([]*model.User, error)

	// ListForUser はユーザーが所属するGroup一覧を返す。
	ListForUser(ctx context.Context, userID string) ([]*model.Group, error)
}

// ClusterRepository はクラスタデータの永続化インターフェース。
type ClusterRepository interface {
	// FindByID は指定IDのクラスタを取得する。見つからない場合はnilを返す。
	// Kubeconfigを含むためAPIレスポンスへ直接渡してはならない。
	FindByID(ctx context.Context, id string) (*model.Cluster, error)

	// Create はクラスタを作成する。名前重複の場合はmodel.ErrDuplicateを返す。
	Create(ctx context.Context, cluster *model.Cluster) error

	// Delete は指定IDのクラスタを削除する。削除対象が存在した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// List は全クラスタを返す。
	List(ctx context.Context) ([]*model.Cluster, error)
}

// InstanceRepository はアプリケーションインスタンスの永続化インターフェース。
type InstanceRepository interface {
	// FindByID は指定IDのインスタンスを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ApplicationInstance, error)

	// Create はインスタンスレコードをアトミックに挿入する。
	// 同一IDまたは同一(name, group)のレコードが既に存在する場合は
	// 上書きせずmodel.ErrDuplicateを返す。並行インストールの衝突判定は
	// この一意制約が最終決定権を持つ。
	Create(ctx context.Context, instance *model.ApplicationInstance) error

	// Delete は指定IDのインスタンスを削除する。削除対象が存在した場合はtrueを返す。
	// 存在しないIDの削除はエラーではない（補償削除の冪等性のため）。
	// 「見つからない」をエラーとして扱うかは呼び出し側が戻り値で判断する。
	Delete(ctx context.Context, id string) (bool, error)

	// List は全インスタンスを返す。
	List(ctx context.Context) ([]*model.ApplicationInstance, error)

	// ListForUser はユーザーが所属するGroupのインスタンス一覧を返す。
	ListForUser(ctx context.Context, userID string) ([]*model.ApplicationInstance, error)
}

// ReconciliationRepository は解消できなかった不整合の記録インターフェース。
// 補償削除の失敗など、外部のリコンシリエーションプロセスに委ねる事象を残す。
type ReconciliationRepository interface {
	// Record は不整合イベントを記録する。
	Record(ctx context.Context, instanceID, action, detail string) error
}
