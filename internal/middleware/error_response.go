package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/helmgate/internal/model"
)

// APIVersion はレスポンスエンベロープのバージョン識別子。
const APIVersion = "v1alpha1"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// StatusForCode はエラー分類をHTTPステータスコードに対応付ける。
// DeployFailedは呼び出し元の入力起因ではないため500系に分類する。
func StatusForCode(code model.ErrorCode) int {
	switch code {
	case model.ErrCodeBadRequest:
		return http.StatusBadRequest
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// APIError以外のエラーは内部エラーとして扱い、詳細は返さない。
func WriteError(w http.ResponseWriter, err error) {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		apiErr = model.NewInternalError()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForCode(apiErr.Code))
	json.NewEncoder(w).Encode(ErrorResponseBody{
		APIVersion: APIVersion,
		Kind:       "Error",
		Code:       string(apiErr.Code),
		Message:    apiErr.Message,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、呼び出し元には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, model.NewInternalError())
}
