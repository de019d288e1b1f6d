// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campushub/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// accountContextKey はリクエストコンテキストに認証済みアカウントを格納するためのキー。
var accountContextKey = contextKey("account")

// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
var sessionIDContextKey = contextKey("session_id")

// AccountResolver はセッションIDから認証済みアカウントを解決するインターフェース。
// identity.Serviceの部分集合として定義する。
type AccountResolver interface {
	Account(ctx context.Context, sessionID string) (*model.UserAccount, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みアカウントとセッションIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(resolver AccountResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}

			// 2. セッションの有効性を検証しアカウントを解決
			account, err := resolver.Account(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session account",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}
			if account == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}

			// 3. アカウントとセッションIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), accountContextKey, account)
			ctx = context.WithValue(ctx, sessionIDContextKey, cookie.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext はリクエストコンテキストから認証済みアカウントを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func AccountFromContext(ctx context.Context) (*model.UserAccount, error) {
	account, ok := ctx.Value(accountContextKey).(*model.UserAccount)
	if !ok || account == nil {
		return nil, fmt.Errorf("account not found in context")
	}
	return account, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// ContextWithAccount はコンテキストに認証済みアカウントを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAccount(ctx context.Context, account *model.UserAccount) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}
