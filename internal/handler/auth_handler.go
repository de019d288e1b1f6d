package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campushub/internal/authfail"
	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/middleware"
	"github.com/hitoshi/campushub/internal/model"
)

const sessionCookieName = "session_id"

// IdentityServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type IdentityServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, *model.UserAccount, error)
	SignUp(ctx context.Context, email, password, displayName string) (*model.Session, *model.UserAccount, error)
	Logout(ctx context.Context, sessionID string) error
	Account(ctx context.Context, sessionID string) (*model.UserAccount, error)
	IsAdmin(ctx context.Context, uid string) (bool, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はメール/パスワード認証関連のHTTPハンドラー。
type AuthHandler struct {
	service IdentityServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service IdentityServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// signInRequest はサインインリクエストのボディ。
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpRequest はサインアップリクエストのボディ。
type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// accountResponse はアカウント情報のAPIレスポンス。
type accountResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// SignIn はメール/パスワードによるサインインを処理する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("email and password are required"))
		return
	}

	session, account, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleSignInError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// SignUp は新規アカウント登録を処理する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("email and password are required"))
		return
	}

	session, account, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.handleSignInError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// ログアウト失敗してもCookieはクリアする
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在の認証済みアカウント情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	account, err := h.service.Account(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if account == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// Admin は現在のアカウントが管理者かどうかを返す。
// GET /auth/me/admin
func (h *AuthHandler) Admin(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	isAdmin, err := h.service.IsAdmin(r.Context(), account.UID)
	if err != nil {
		// ロールクレーム取得失敗は非管理者として扱う
		slog.Warn("failed to resolve admin role",
			slog.String("uid", account.UID),
			slog.String("error", err.Error()),
		)
		isAdmin = false
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_admin": isAdmin})
}

// NewAdminStreamHandler は管理者権限のライブシーケンスをSSEで配信する
// ハンドラーを返す。サインアウトするとfalseが配信される。
// GET /auth/me/admin/stream
func NewAdminStreamHandler(svc *identity.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := middleware.SessionIDFromContext(r.Context())
		if err != nil {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
			return
		}

		states := svc.AdminStream(sessionID, logger).Observe(r.Context())
		streamBoolStates(w, r, "admin", states)
	}
}

// handleSignInError は認証失敗を分類して固定文言のレスポンスに変換する。
// キャンセルは分類せずそのまま伝播させる。
func (h *AuthHandler) handleSignInError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// クライアント切断。レスポンスは届かないがステータスだけ返す。
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	reason := authfail.Classify(err)
	slog.Warn("sign-in failed",
		slog.String("reason", reason.String()),
	)

	status := http.StatusUnauthorized
	switch reason {
	case authfail.ReasonRateLimited:
		status = http.StatusTooManyRequests
	case authfail.ReasonNetwork:
		status = http.StatusBadGateway
	}

	writeAPIErrorResponse(w, status, model.NewSignInFailedError(authfail.Message(reason)))
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// toAccountResponse はmodel.UserAccountからAPIレスポンスに変換する。
func toAccountResponse(account *model.UserAccount) accountResponse {
	return accountResponse{
		UID:         account.UID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	}
}
