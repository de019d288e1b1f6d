// Package authfail はサインイン/登録時の認証エラーを固定の理由と
// ユーザー向け文言に分類する。
//
// Classifyは全域関数であり、どんなエラーを渡しても必ず1つの理由を返す。
// ただしキャンセルは分類対象外のため、呼び出し側はClassifyに渡す前に
// context.Canceled / context.DeadlineExceededを再送出すること。
package authfail

import (
	"errors"
	"net"

	"github.com/hitoshi/campushub/internal/identity"
)

// Reason は認証失敗の分類を表す。
type Reason int

const (
	// ReasonNetwork はネットワーク到達性の問題。
	ReasonNetwork Reason = iota
	// ReasonInvalidEmailFormat はメールアドレスの形式不正。
	ReasonInvalidEmailFormat
	// ReasonUserNotFound はアカウント未登録。
	ReasonUserNotFound
	// ReasonInvalidCredentials はメールアドレスまたはパスワードの誤り。
	ReasonInvalidCredentials
	// ReasonEmailInUse はメールアドレスの登録済み重複。
	ReasonEmailInUse
	// ReasonWeakPassword はパスワード強度不足。
	ReasonWeakPassword
	// ReasonRateLimited は試行回数超過。
	ReasonRateLimited
	// ReasonOther は上記いずれにも該当しない失敗。
	ReasonOther
)

// String はログ出力用の理由名を返す。
func (r Reason) String() string {
	switch r {
	case ReasonNetwork:
		return "NETWORK"
	case ReasonInvalidEmailFormat:
		return "INVALID_EMAIL_FORMAT"
	case ReasonUserNotFound:
		return "USER_NOT_FOUND"
	case ReasonInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case ReasonEmailInUse:
		return "EMAIL_IN_USE"
	case ReasonWeakPassword:
		return "WEAK_PASSWORD"
	case ReasonRateLimited:
		return "RATE_LIMITED"
	default:
		return "OTHER"
	}
}

// providerCodes はIDプロバイダーのエラーコードから理由へのマッピング。
// 未知のコードはReasonOtherに落ちる。
var providerCodes = map[string]Reason{
	// メール形式
	"INVALID_EMAIL":       ReasonInvalidEmailFormat,
	"ERROR_INVALID_EMAIL": ReasonInvalidEmailFormat,

	// アカウント未登録
	"EMAIL_NOT_FOUND":      ReasonUserNotFound,
	"ERROR_USER_NOT_FOUND": ReasonUserNotFound,

	// 資格情報の誤り
	"INVALID_PASSWORD":          ReasonInvalidCredentials,
	"ERROR_WRONG_PASSWORD":      ReasonInvalidCredentials,
	"INVALID_LOGIN_CREDENTIALS": ReasonInvalidCredentials,
	"INVALID_CREDENTIAL":        ReasonInvalidCredentials,

	// 登録済み重複
	"EMAIL_EXISTS":               ReasonEmailInUse,
	"ERROR_EMAIL_ALREADY_IN_USE": ReasonEmailInUse,

	// パスワード強度
	"WEAK_PASSWORD":       ReasonWeakPassword,
	"ERROR_WEAK_PASSWORD": ReasonWeakPassword,

	// 試行回数超過
	"TOO_MANY_ATTEMPTS_TRY_LATER": ReasonRateLimited,
	"ERROR_TOO_MANY_REQUESTS":     ReasonRateLimited,
}

// messages は理由ごとの固定ユーザー向け文言。
var messages = map[Reason]string{
	ReasonNetwork:            "Network error. Check your connection and try again.",
	ReasonInvalidEmailFormat: "The email address is badly formatted.",
	ReasonUserNotFound:       "No account exists for this email address.",
	ReasonInvalidCredentials: "Incorrect email or password.",
	ReasonEmailInUse:         "An account already exists for this email address.",
	ReasonWeakPassword:       "The password is too weak. Use at least 6 characters.",
	ReasonRateLimited:        "Too many attempts. Please try again later.",
	ReasonOther:              "Sign-in failed. Please try again.",
}

// Classify はエラーを認証失敗の理由に分類する。
// IDプロバイダーのエラーコード、ネットワークエラーの順で判定し、
// どれにも該当しなければReasonOtherを返す。nilもReasonOtherになる。
func Classify(err error) Reason {
	if err == nil {
		return ReasonOther
	}

	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		if reason, ok := providerCodes[authErr.Code]; ok {
			return reason
		}
		return ReasonOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonNetwork
	}

	return ReasonOther
}

// Message は理由に対応する固定ユーザー向け文言を返す。
func Message(reason Reason) string {
	if msg, ok := messages[reason]; ok {
		return msg
	}
	return messages[ReasonOther]
}
