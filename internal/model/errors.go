// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, community, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired   = "AUTH_REQUIRED"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeWriteFailed    = "WRITE_FAILED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAdminOnly      = "ADMIN_ONLY"
	ErrCodeSignInFailed   = "SIGN_IN_FAILED"
	ErrCodeInvalidURL     = "INVALID_URL"
	ErrCodeBlockedURL     = "BLOCKED_URL"
	ErrCodeFetchFailed    = "FETCH_FAILED"
	ErrCodeNoFeedFound    = "NO_FEED_FOUND"
)

// NewAuthRequiredError は未認証エラーを生成する。
// 書き込み操作の事前条件違反（サインインしていない）に使用する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "Please sign in to continue.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request and try again.",
	}
}

// NewWriteFailedError は書き込み失敗エラーを生成する。
// ストア書き込みの失敗結果をUIに返す際の固定メッセージ。
func NewWriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeWriteFailed,
		Message:  "The action failed. Please try again.",
		Category: "community",
		Action:   "Wait a moment and try again.",
	}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(kind, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("The requested %s was not found: %s", kind, id),
		Category: "community",
		Action:   "Reload the list and try again.",
	}
}

// NewAdminOnlyError は管理者権限エラーを生成する。
func NewAdminOnlyError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminOnly,
		Message:  "This action requires administrator rights.",
		Category: "auth",
		Action:   "Contact an administrator if you believe this is a mistake.",
	}
}

// NewInvalidURLError はURL形式エラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Check the URL and try again.",
	}
}

// NewBlockedURLError はSSRF検証で拒否されたURLのエラーを生成する。
func NewBlockedURLError() *APIError {
	return &APIError{
		Code:     ErrCodeBlockedURL,
		Message:  "The URL points to a blocked network range.",
		Category: "validation",
		Action:   "Use a publicly reachable URL.",
	}
}

// NewFetchFailedError は外部フィード取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("Failed to fetch the feed: %s", reason),
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

// NewNoFeedFoundError はフィード未検出エラーを生成する。
func NewNoFeedFoundError(inputURL string) *APIError {
	return &APIError{
		Code:     ErrCodeNoFeedFound,
		Message:  fmt.Sprintf("No feed was found at %s.", inputURL),
		Category: "validation",
		Action:   "Check that the site publishes an RSS or Atom feed.",
	}
}

// NewSignInFailedError はサインイン失敗エラーを生成する。
// messageには認証失敗分類器が決定した固定文言を渡す。
func NewSignInFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeSignInFailed,
		Message:  message,
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}
