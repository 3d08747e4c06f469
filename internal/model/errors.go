// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrDuplicate はストアの一意制約違反を表すセンチネルエラー。
// アトミックな挿入が後着の書き込みを拒否したことを示す。
var ErrDuplicate = errors.New("duplicate record")

// ErrorCode はAPIエラーの分類を表す。
type ErrorCode string

// 定義済みエラーコード
const (
	// ErrCodeBadRequest は入力の欠落・型不一致・無効な参照を表す。
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	// ErrCodeForbidden は認証・認可の失敗を表す。
	// 理由の詳細（未知ユーザーかトークン不一致か）はメッセージで区別しない。
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeNotFound は対象（アプリケーション、インスタンス、ユーザー）の不在を表す。
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict は一意属性の重複を表す。状態は変更されない。
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeDeployFailed はhelmが実行されデプロイ失敗を報告したことを表す。
	// プラットフォーム障害（INTERNAL_ERROR）とは区別し、抽出した診断行を
	// メッセージに含める。
	ErrCodeDeployFailed ErrorCode = "DEPLOY_FAILED"
	// ErrCodeInternal はストア書き込み失敗やGatewayのトランスポート障害を表す。
	// 詳細はログのみに記録し、呼び出し元には一般的なメッセージを返す。
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// APIError は呼び出し元に返す統一エラーフォーマットを表す。
type APIError struct {
	Code    ErrorCode
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewBadRequestError は入力不正エラーを生成する。
// メッセージには問題のあるフィールド名を含めること。
func NewBadRequestError(message string) *APIError {
	return &APIError{Code: ErrCodeBadRequest, Message: message}
}

// NewForbiddenError は認可エラーを生成する。
// 拒否理由を漏らさないよう、メッセージは常に同一の文言とする。
func NewForbiddenError() *APIError {
	return &APIError{Code: ErrCodeForbidden, Message: "Not authorized"}
}

// NewNotFoundError は対象不在エラーを生成する。
func NewNotFoundError(what string) *APIError {
	return &APIError{Code: ErrCodeNotFound, Message: what + " not found"}
}

// NewConflictError は一意属性の重複エラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{Code: ErrCodeConflict, Message: message}
}

// NewDeployFailedError はデプロイ失敗エラーを生成する。
// diagnosticにはhelm出力から抽出したエラー行を渡す。空の場合は一般的な
// メッセージのみとなる。
func NewDeployFailedError(diagnostic string) *APIError {
	msg := "Failed to start application instance with helm"
	if diagnostic != "" {
		msg += ": " + diagnostic
	}
	return &APIError{Code: ErrCodeDeployFailed, Message: msg}
}

// NewInternalError は内部エラーを生成する。
// 呼び出し元に返すのは一般的なメッセージのみで、詳細はログに記録する。
func NewInternalError() *APIError {
	return &APIError{Code: ErrCodeInternal, Message: "An internal error occurred"}
}
