// Package model はドメインモデルを定義する。
package model

import "time"

// User はプラットフォーム利用ユーザーを表す。
// Tokenはユーザーごとに1つだけ有効なベアラートークンで、ローテーション可能。
type User struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Institution string
	GlobusID    string
	Admin       bool
	Token       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserUpdate はユーザーの部分更新を表す。
// nilのフィールドは「変更しない」を意味する。
type UserUpdate struct {
	Name        *string
	Email       *string
	Phone       *string
	Institution *string
	Admin       *bool
}

// Empty は更新対象のフィールドが1つもない場合にtrueを返す。
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil &&
		u.Institution == nil && u.Admin == nil
}
