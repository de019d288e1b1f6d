// Package syncstate はリアルタイム同期状態リポジトリの汎用実装を提供する。
//
// 各ドメイン（チャンネル、質問、回答、お知らせ、時間割、カレンダー等）は
// このパッケージのRepoを構成して、認証状態とストア購読を合成した
// 判別付き状態のライブシーケンスを公開する。
package syncstate

// Phase は同期状態の種別を表す。
// 閉じた集合であり、消費側はswitchで全ケースを処理すること。
type Phase int

const (
	// PhaseLoading は購読開始済みでデータ未着の状態。
	PhaseLoading Phase = iota
	// PhaseSuccess は最新スナップショットを保持している状態。
	PhaseSuccess
	// PhaseError はストア購読がエラーを報告した状態。
	PhaseError
	// PhaseSignedOut は認証済みユーザーが存在しない状態。
	PhaseSignedOut
)

// String はログ・シリアライズ用の状態名を返す。
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	case PhaseSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// State はある時点の同期状態を表す判別付き共用体。
// Phaseに応じて有効なフィールドが決まる:
//   - PhaseSuccess: Items（ドメインごとの規則で整列済み）
//   - PhaseError: Message（固定のユーザー向け文言）とCause（ログ用の内部原因）
type State[T any] struct {
	Phase   Phase
	Items   []T
	Message string
	Cause   error
}

// Loading はLoading状態を生成する。
func Loading[T any]() State[T] {
	return State[T]{Phase: PhaseLoading}
}

// Success はSuccess状態を生成する。
func Success[T any](items []T) State[T] {
	return State[T]{Phase: PhaseSuccess, Items: items}
}

// Failure はError状態を生成する。
// messageは固定のユーザー向け文言であり、生のバックエンドエラーを
// 渡してはならない。causeはログ専用。
func Failure[T any](message string, cause error) State[T] {
	return State[T]{Phase: PhaseError, Message: message, Cause: cause}
}

// SignedOut はSignedOut状態を生成する。
func SignedOut[T any]() State[T] {
	return State[T]{Phase: PhaseSignedOut}
}
