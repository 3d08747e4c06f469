// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/helmgate/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// Authenticator はトークンからユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// NewTokenMiddleware はベアラートークンを解決するミドルウェアを返す。
// トークンはAuthorization: Bearerヘッダーまたはtokenクエリパラメータで
// 提示される。解決できたユーザーをリクエストコンテキストに注入する。
//
// トークンが無い・未知のリクエストもここでは拒否しない。カタログ参照の
// ように未認証でも許可される操作があるため、拒否の判定は各ルートの
// RequireUserと各サービスの認可に委ねる。
func NewTokenMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				slog.Error("authentication lookup failed",
					slog.String("error", err.Error()),
				)
				WriteError(w, model.NewInternalError())
				return
			}
			if user == nil {
				// 未知のトークンは匿名として通す。保護されたルートでは
				// RequireUserがForbiddenを返す
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser は認証済みユーザーの存在を要求するミドルウェアを返す。
// 匿名リクエストにはForbiddenを返す。「存在しないユーザー」と
// 「トークン不一致」はレスポンス上区別されない。
func RequireUser() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFromContext(r.Context()); !ok {
				WriteError(w, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken はリクエストからベアラートークンを取り出す。
// Authorizationヘッダーが優先され、無ければtokenクエリパラメータを見る。
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
