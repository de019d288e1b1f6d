package question

import (
	"context"
	"log/slog"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// MetaRepo は閲覧者ごとの既読マーカーの同期状態リポジトリ。
// 購読は認証済みUIDにスコープされる。
type MetaRepo struct {
	base *syncstate.Repo[model.QuestionMeta]
}

// NewMetaRepo はMetaRepoを生成する。
func NewMetaRepo(st store.Store, auth identity.Stream, rec syncstate.Recorder, logger *slog.Logger) *MetaRepo {
	base := syncstate.New(st, auth, syncstate.Config[model.QuestionMeta]{
		Name:         "question_meta",
		ErrorMessage: metaLoadError,
		Query: func(uid string) store.Query {
			return store.Query{Collection: MetaCollection, Field: "ownerId", Value: uid}
		},
		Decode: decodeMeta,
		Less: func(a, b model.QuestionMeta) bool {
			return a.QuestionID < b.QuestionID
		},
	}, rec, logger)

	return &MetaRepo{base: base}
}

// Observe は既読マーカー一覧の同期状態ライブシーケンスを開始する。
func (r *MetaRepo) Observe(ctx context.Context) <-chan syncstate.State[model.QuestionMeta] {
	return r.base.Observe(ctx)
}

// MarkSeen は質問の現在の回答数を既読として記録する。
// ドキュメントIDは閲覧者UIDと質問IDの組で決まり、書き込みは冪等。
func (r *MetaRepo) MarkSeen(ctx context.Context, actor *model.UserAccount, questionID string, answerCount int) error {
	if actor == nil {
		return model.NewAuthRequiredError()
	}
	if questionID == "" {
		return model.NewInvalidRequestError("question id is required")
	}
	if answerCount < 0 {
		answerCount = 0
	}

	doc := store.Document{
		ID: actor.UID + ":" + questionID,
		Data: map[string]any{
			"ownerId":         actor.UID,
			"questionId":      questionID,
			"lastSeenAnswers": answerCount,
		},
	}
	_, err := r.base.Put(ctx, actor, MetaCollection, doc)
	return err
}

// decodeMeta はストアドキュメントをQuestionMetaに変換する。
// 必須フィールド（questionId）が欠落している場合は除外する。
func decodeMeta(doc store.Document) (model.QuestionMeta, bool) {
	questionID, ok := doc.Str("questionId")
	if !ok || questionID == "" {
		return model.QuestionMeta{}, false
	}

	lastSeen, _ := doc.Int("lastSeenAnswers")

	return model.QuestionMeta{
		QuestionID:      questionID,
		LastSeenAnswers: int(lastSeen),
	}, true
}
