// Package question は質問・回答ドメインの同期状態リポジトリと、
// 未読数・フィルタの導出ロジックを提供する。
package question

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// コレクション名
const (
	QuestionCollection = "questions"
	AnswerCollection   = "answers"
	MetaCollection     = "questionMeta"
)

// 固定のユーザー向けエラーメッセージ
const (
	questionLoadError = "Unable to load questions."
	answerLoadError   = "Unable to load answers."
	metaLoadError     = "Unable to load your read history."
)

// lastMessageMaxRunes は質問に保持する最終メッセージプレビューの最大長。
const lastMessageMaxRunes = 80

// Sanitizer はユーザー入力本文のサニタイズを行う。
type Sanitizer interface {
	Sanitize(raw string) string
}

// QuestionRepo は1チャンネル分の質問の同期状態リポジトリ。
type QuestionRepo struct {
	base      *syncstate.Repo[model.Question]
	store     store.Store
	sanitizer Sanitizer
	channelID string
}

// NewQuestionRepo は指定チャンネルに束縛された質問リポジトリを生成する。
func NewQuestionRepo(
	st store.Store,
	auth identity.Stream,
	channelID string,
	sanitizer Sanitizer,
	rec syncstate.Recorder,
	logger *slog.Logger,
) *QuestionRepo {
	base := syncstate.New(st, auth, syncstate.Config[model.Question]{
		Name:         "questions",
		ErrorMessage: questionLoadError,
		Query: func(string) store.Query {
			return store.Query{Collection: QuestionCollection, Field: "channelId", Value: channelID}
		},
		Decode: decodeQuestion,
		Less: func(a, b model.Question) bool {
			// 最終アクティビティの新しい順
			if !a.LastActivityAt.Equal(b.LastActivityAt) {
				return a.LastActivityAt.After(b.LastActivityAt)
			}
			return a.ID < b.ID
		},
	}, rec, logger)

	return &QuestionRepo{
		base:      base,
		store:     st,
		sanitizer: sanitizer,
		channelID: channelID,
	}
}

// Observe は質問一覧の同期状態ライブシーケンスを開始する。
func (r *QuestionRepo) Observe(ctx context.Context) <-chan syncstate.State[model.Question] {
	return r.base.Observe(ctx)
}

// Create は質問を投稿する。
// 作成時刻と初期状態（OPEN、回答数0、最終アクティビティ=作成時刻）を設定する。
func (r *QuestionRepo) Create(ctx context.Context, actor *model.UserAccount, q model.Question) (string, error) {
	if q.Title == "" || q.Body == "" {
		return "", model.NewInvalidRequestError("question title and body are required")
	}

	now := time.Now().UTC()
	q.ChannelID = r.channelID
	q.Title = r.sanitizer.Sanitize(q.Title)
	q.Body = r.sanitizer.Sanitize(q.Body)
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.LastActivityAt = q.CreatedAt
	q.AnswerCount = 0
	if q.Status == "" {
		q.Status = model.QuestionStatusOpen
	}
	if actor != nil && q.AuthorID == "" {
		q.AuthorID = actor.UID
		q.AuthorLabel = actor.DisplayName
	}

	return r.base.Put(ctx, actor, QuestionCollection, encodeQuestion(q))
}

// Update は質問全体を置き換え更新する。
func (r *QuestionRepo) Update(ctx context.Context, actor *model.UserAccount, q model.Question) error {
	if q.ID == "" {
		return model.NewInvalidRequestError("question id is required")
	}
	q.Title = r.sanitizer.Sanitize(q.Title)
	q.Body = r.sanitizer.Sanitize(q.Body)
	_, err := r.base.Put(ctx, actor, QuestionCollection, encodeQuestion(q))
	return err
}

// Delete は指定IDの質問を削除する。
func (r *QuestionRepo) Delete(ctx context.Context, actor *model.UserAccount, id string) error {
	return r.base.Remove(ctx, actor, QuestionCollection, id)
}

// Accept は回答を採用し、質問をANSWERED状態にする。
func (r *QuestionRepo) Accept(ctx context.Context, actor *model.UserAccount, questionID, answerID string) error {
	return r.mutate(ctx, actor, questionID, func(data map[string]any) {
		data["status"] = string(model.QuestionStatusAnswered)
		data["acceptedAnswerId"] = answerID
	})
}

// Lock は質問をLOCKED状態にし、回答受付を終了する。
func (r *QuestionRepo) Lock(ctx context.Context, actor *model.UserAccount, questionID string) error {
	return r.mutate(ctx, actor, questionID, func(data map[string]any) {
		data["status"] = string(model.QuestionStatusLocked)
	})
}

// mutate は質問ドキュメントを読み取り、変更し、書き戻す。
func (r *QuestionRepo) mutate(ctx context.Context, actor *model.UserAccount, questionID string, fn func(map[string]any)) error {
	if actor == nil {
		return model.NewAuthRequiredError()
	}

	doc, err := r.store.Get(ctx, QuestionCollection, questionID)
	if err != nil {
		return err
	}
	if doc == nil {
		return model.NewNotFoundError("question", questionID)
	}

	fn(doc.Data)
	_, err = r.base.Put(ctx, actor, QuestionCollection, *doc)
	return err
}

// decodeQuestion はストアドキュメントをQuestionに変換する。
// 必須フィールド（channelId, title, body, authorId, createdAt）が
// 欠落している場合は除外する。
func decodeQuestion(doc store.Document) (model.Question, bool) {
	channelID, ok := doc.Str("channelId")
	if !ok || channelID == "" {
		return model.Question{}, false
	}
	title, ok := doc.Str("title")
	if !ok || title == "" {
		return model.Question{}, false
	}
	body, ok := doc.Str("body")
	if !ok {
		return model.Question{}, false
	}
	authorID, ok := doc.Str("authorId")
	if !ok || authorID == "" {
		return model.Question{}, false
	}
	createdAt, ok := doc.Time("createdAt")
	if !ok {
		return model.Question{}, false
	}

	lastActivityAt, ok := doc.Time("lastActivityAt")
	if !ok || lastActivityAt.Before(createdAt) {
		// 不変条件: lastActivityAt >= createdAt
		lastActivityAt = createdAt
	}

	answerCount, _ := doc.Int("answerCount")

	status := model.QuestionStatus(doc.StrOr("status", string(model.QuestionStatusOpen)))

	return model.Question{
		ID:               doc.ID,
		ChannelID:        channelID,
		Title:            title,
		Body:             body,
		AuthorID:         authorID,
		AuthorLabel:      doc.StrOr("authorLabel", ""),
		AuthorPhotoURL:   doc.StrOr("authorPhotoUrl", ""),
		CreatedAt:        createdAt,
		LastActivityAt:   lastActivityAt,
		LastMessage:      doc.StrOr("lastMessage", ""),
		AnswerCount:      int(answerCount),
		Status:           status,
		AcceptedAnswerID: doc.StrOr("acceptedAnswerId", ""),
	}, true
}

// encodeQuestion はQuestionをストアドキュメントに変換する。
func encodeQuestion(q model.Question) store.Document {
	data := map[string]any{
		"channelId":      q.ChannelID,
		"title":          q.Title,
		"body":           q.Body,
		"authorId":       q.AuthorID,
		"createdAt":      q.CreatedAt.Format(time.RFC3339),
		"lastActivityAt": q.LastActivityAt.Format(time.RFC3339),
		"answerCount":    q.AnswerCount,
		"status":         string(q.Status),
	}
	if q.AuthorLabel != "" {
		data["authorLabel"] = q.AuthorLabel
	}
	if q.AuthorPhotoURL != "" {
		data["authorPhotoUrl"] = q.AuthorPhotoURL
	}
	if q.LastMessage != "" {
		data["lastMessage"] = q.LastMessage
	}
	if q.AcceptedAnswerID != "" {
		data["acceptedAnswerId"] = q.AcceptedAnswerID
	}
	return store.Document{ID: q.ID, Data: data}
}
