// Package model はドメインモデルを定義する。
package model

import "time"

// Question はチャンネル内の質問を表す。
// 不変条件: LastActivityAt >= CreatedAt（作成時はCreatedAtと同値）。
type Question struct {
	ID               string
	ChannelID        string
	Title            string
	Body             string
	AuthorID         string
	AuthorLabel      string
	AuthorPhotoURL   string
	CreatedAt        time.Time
	LastActivityAt   time.Time
	LastMessage      string
	AnswerCount      int
	Status           QuestionStatus
	AcceptedAnswerID string // 任意
}

// QuestionStatus は質問の回答状態を表す。
// 通常の運用ではOPEN → ANSWERED → LOCKED（またはOPEN → LOCKED）の一方向に
// 遷移するが、バックエンドからの任意の書き込みは拒否しない。
type QuestionStatus string

const (
	// QuestionStatusOpen は回答受付中の状態。
	QuestionStatusOpen QuestionStatus = "OPEN"
	// QuestionStatusAnswered は回答済みの状態。
	QuestionStatusAnswered QuestionStatus = "ANSWERED"
	// QuestionStatusLocked はロック済み（回答受付終了）の状態。
	QuestionStatusLocked QuestionStatus = "LOCKED"
)

// Answer は質問への回答を表す。作成後は不変。
// 採用状態は回答自身ではなく親のQuestion側で管理される。
type Answer struct {
	ID             string
	ChannelID      string
	QuestionID     string
	Body           string
	AuthorID       string
	AuthorLabel    string
	AuthorPhotoURL string
	CreatedAt      time.Time
}

// QuestionMeta は質問ごと・閲覧者ごとの既読マーカーを表す。
// 未読数の算出にのみ使用され、閲覧者が回答数を確認した時点で書き込まれる。
type QuestionMeta struct {
	QuestionID      string
	LastSeenAnswers int
}

// QuestionFilter は質問一覧のフィルタ種別を表す。
type QuestionFilter string

const (
	// QuestionFilterOpen は回答受付中の質問のみを表示するフィルタ。
	QuestionFilterOpen QuestionFilter = "open"
	// QuestionFilterAnswered は回答済み（ANSWEREDまたはLOCKED）の質問のみを
	// 表示するフィルタ。
	QuestionFilterAnswered QuestionFilter = "answered"
)
