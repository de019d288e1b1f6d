// Package identity は外部IDプロバイダーとの連携、認証状態ストリーム、
// セッション管理を提供する。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/campushub/internal/model"
)

// AuthError はIDプロバイダーが返した認証エラーを表す。
// Codeはプロバイダー固有のエラーコード（例: "ERROR_WRONG_PASSWORD"）。
type AuthError struct {
	Code       string
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return fmt.Sprintf("identity provider error %s (status %d)", e.Code, e.StatusCode)
}

// Client はIDプロバイダーのインターフェース。
type Client interface {
	// SignIn はメールアドレスとパスワードでサインインする。
	// 認証失敗時は*AuthErrorを返す。
	SignIn(ctx context.Context, email, password string) (*model.UserAccount, error)

	// SignUp は新規アカウントを登録する。
	// 登録失敗時は*AuthErrorを返す。
	SignUp(ctx context.Context, email, password, displayName string) (*model.UserAccount, error)

	// RoleClaim はIDトークンのカスタムクレームからroleを取得する。
	// クレームが存在しない場合は空文字列を返す。
	RoleClaim(ctx context.Context, uid string) (string, error)
}

// HTTPClientConfig はHTTPClientの設定。
type HTTPClientConfig struct {
	BaseURL string // IDプロバイダーのREST APIベースURL
	APIKey  string

	// テスト用にオーバーライド可能なHTTPクライアント
	HTTPClient *http.Client
}

// HTTPClient はREST APIベースのIDプロバイダークライアント。
type HTTPClient struct {
	config HTTPClientConfig
	client *http.Client
}

// NewHTTPClient はHTTPClientを生成する。
func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{config: config, client: client}
}

// signInResponse はサインイン/サインアップエンドポイントのレスポンス。
type signInResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// lookupResponse はアカウント参照エンドポイントのレスポンス。
type lookupResponse struct {
	Users []struct {
		LocalID          string `json:"localId"`
		CustomAttributes string `json:"customAttributes"` // JSONエンコードされたクレーム
	} `json:"users"`
}

// errorResponse はIDプロバイダーのエラーレスポンス。
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn はメールアドレスとパスワードでサインインする。
func (c *HTTPClient) SignIn(ctx context.Context, email, password string) (*model.UserAccount, error) {
	body := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var resp signInResponse
	if err := c.post(ctx, "/v1/accounts:signInWithPassword", body, &resp); err != nil {
		return nil, err
	}

	return &model.UserAccount{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
	}, nil
}

// SignUp は新規アカウントを登録する。
func (c *HTTPClient) SignUp(ctx context.Context, email, password, displayName string) (*model.UserAccount, error) {
	body := map[string]any{
		"email":             email,
		"password":          password,
		"displayName":       displayName,
		"returnSecureToken": true,
	}

	var resp signInResponse
	if err := c.post(ctx, "/v1/accounts:signUp", body, &resp); err != nil {
		return nil, err
	}

	return &model.UserAccount{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: displayName,
	}, nil
}

// RoleClaim はアカウントのカスタムクレームからroleを取得する。
func (c *HTTPClient) RoleClaim(ctx context.Context, uid string) (string, error) {
	body := map[string]any{
		"localId": []string{uid},
	}

	var resp lookupResponse
	if err := c.post(ctx, "/v1/accounts:lookup", body, &resp); err != nil {
		return "", err
	}

	if len(resp.Users) == 0 || resp.Users[0].CustomAttributes == "" {
		return "", nil
	}

	var claims struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal([]byte(resp.Users[0].CustomAttributes), &claims); err != nil {
		// クレームが壊れている場合は権限なしとして扱う
		return "", nil
	}
	return claims.Role, nil
}

// post はIDプロバイダーのエンドポイントにJSONリクエストを送信する。
// 非2xxレスポンスは*AuthErrorに変換する。
func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.config.BaseURL + path + "?key=" + c.config.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// ネットワークエラーはそのまま返す（分類器がNETWORKに振り分ける）
		return fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error.Message == "" {
			return &AuthError{Code: "UNKNOWN", StatusCode: resp.StatusCode}
		}
		return &AuthError{Code: errResp.Error.Message, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse identity response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Client = (*HTTPClient)(nil)
