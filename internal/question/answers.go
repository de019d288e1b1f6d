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

// AnswerRepo は1質問分の回答の同期状態リポジトリ。
type AnswerRepo struct {
	base       *syncstate.Repo[model.Answer]
	store      store.Store
	sanitizer  Sanitizer
	questionID string
}

// NewAnswerRepo は指定質問に束縛された回答リポジトリを生成する。
func NewAnswerRepo(
	st store.Store,
	auth identity.Stream,
	questionID string,
	sanitizer Sanitizer,
	rec syncstate.Recorder,
	logger *slog.Logger,
) *AnswerRepo {
	base := syncstate.New(st, auth, syncstate.Config[model.Answer]{
		Name:         "answers",
		ErrorMessage: answerLoadError,
		Query: func(string) store.Query {
			return store.Query{Collection: AnswerCollection, Field: "questionId", Value: questionID}
		},
		Decode: decodeAnswer,
		Less: func(a, b model.Answer) bool {
			// 投稿の古い順（会話の時系列）
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		},
	}, rec, logger)

	return &AnswerRepo{
		base:       base,
		store:      st,
		sanitizer:  sanitizer,
		questionID: questionID,
	}
}

// Observe は回答一覧の同期状態ライブシーケンスを開始する。
func (r *AnswerRepo) Observe(ctx context.Context) <-chan syncstate.State[model.Answer] {
	return r.base.Observe(ctx)
}

// Create は回答を投稿し、親質問の回答数・最終アクティビティ・
// 最終メッセージプレビューを更新する。
func (r *AnswerRepo) Create(ctx context.Context, actor *model.UserAccount, a model.Answer) (string, error) {
	if a.Body == "" {
		return "", model.NewInvalidRequestError("answer body is required")
	}

	a.QuestionID = r.questionID
	a.Body = r.sanitizer.Sanitize(a.Body)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if actor != nil && a.AuthorID == "" {
		a.AuthorID = actor.UID
		a.AuthorLabel = actor.DisplayName
	}

	id, err := r.base.Put(ctx, actor, AnswerCollection, encodeAnswer(a))
	if err != nil {
		return "", err
	}

	// 親質問のアクティビティを更新する。回答本体の書き込みが確定した後に
	// 行うため、失敗しても回答自体は残る（回答数は次の回答時に追い付く）。
	if err := r.touchParent(ctx, actor, a); err != nil {
		return id, err
	}
	return id, nil
}

// Delete は指定IDの回答を削除する。回答数は減算しない
// （回答数は単調非減少として扱う）。
func (r *AnswerRepo) Delete(ctx context.Context, actor *model.UserAccount, id string) error {
	return r.base.Remove(ctx, actor, AnswerCollection, id)
}

// touchParent は親質問の回答集計フィールドを更新する。
func (r *AnswerRepo) touchParent(ctx context.Context, actor *model.UserAccount, a model.Answer) error {
	doc, err := r.store.Get(ctx, QuestionCollection, r.questionID)
	if err != nil {
		return err
	}
	if doc == nil {
		return model.NewNotFoundError("question", r.questionID)
	}

	count, _ := doc.Int("answerCount")
	doc.Data["answerCount"] = int(count) + 1
	doc.Data["lastActivityAt"] = a.CreatedAt.Format(time.RFC3339)
	doc.Data["lastMessage"] = preview(a.Body)

	return r.store.Set(ctx, QuestionCollection, *doc)
}

// preview は本文から最終メッセージプレビューを切り出す。
func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= lastMessageMaxRunes {
		return body
	}
	return string(runes[:lastMessageMaxRunes])
}

// decodeAnswer はストアドキュメントをAnswerに変換する。
// 必須フィールド（questionId, body, authorId, createdAt）が
// 欠落している場合は除外する。
func decodeAnswer(doc store.Document) (model.Answer, bool) {
	questionID, ok := doc.Str("questionId")
	if !ok || questionID == "" {
		return model.Answer{}, false
	}
	body, ok := doc.Str("body")
	if !ok || body == "" {
		return model.Answer{}, false
	}
	authorID, ok := doc.Str("authorId")
	if !ok || authorID == "" {
		return model.Answer{}, false
	}
	createdAt, ok := doc.Time("createdAt")
	if !ok {
		return model.Answer{}, false
	}

	return model.Answer{
		ID:             doc.ID,
		ChannelID:      doc.StrOr("channelId", ""),
		QuestionID:     questionID,
		Body:           body,
		AuthorID:       authorID,
		AuthorLabel:    doc.StrOr("authorLabel", ""),
		AuthorPhotoURL: doc.StrOr("authorPhotoUrl", ""),
		CreatedAt:      createdAt,
	}, true
}

// encodeAnswer はAnswerをストアドキュメントに変換する。
func encodeAnswer(a model.Answer) store.Document {
	data := map[string]any{
		"questionId": a.QuestionID,
		"body":       a.Body,
		"authorId":   a.AuthorID,
		"createdAt":  a.CreatedAt.Format(time.RFC3339),
	}
	if a.ChannelID != "" {
		data["channelId"] = a.ChannelID
	}
	if a.AuthorLabel != "" {
		data["authorLabel"] = a.AuthorLabel
	}
	if a.AuthorPhotoURL != "" {
		data["authorPhotoUrl"] = a.AuthorPhotoURL
	}
	return store.Document{ID: a.ID, Data: data}
}
