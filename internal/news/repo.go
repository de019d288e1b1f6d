// Package news はお知らせドメインの同期状態リポジトリと
// 外部フィード取り込みを提供する。
package news

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// Collection はお知らせドキュメントのコレクション名。
const Collection = "news"

// loadErrorMessage はストア購読エラー時の固定文言。
const loadErrorMessage = "Unable to load news."

// Repo はお知らせの同期状態リポジトリ。
// お知らせ一覧はグローバル（全ユーザー共通）の購読で、新着順に整列する。
type Repo struct {
	base      *syncstate.Repo[model.NewsItem]
	sanitizer Sanitizer
}

// Sanitizer はお知らせ本文のHTMLを無害化する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// NewRepo はRepoを生成する。
func NewRepo(st store.Store, auth identity.Stream, sanitizer Sanitizer, rec syncstate.Recorder, logger *slog.Logger) *Repo {
	base := syncstate.New(st, auth, syncstate.Config[model.NewsItem]{
		Name:         "news",
		ErrorMessage: loadErrorMessage,
		Query: func(string) store.Query {
			return store.Query{Collection: Collection}
		},
		Decode: decode,
		Less: func(a, b model.NewsItem) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		},
	}, rec, logger)

	return &Repo{base: base, sanitizer: sanitizer}
}

// Observe はお知らせ一覧の同期状態ライブシーケンスを開始する。
func (r *Repo) Observe(ctx context.Context) <-chan syncstate.State[model.NewsItem] {
	return r.base.Observe(ctx)
}

// Create はお知らせを作成する。IDが未指定の場合は生成して返す。
// 本文はサニタイズしてから保存する。
func (r *Repo) Create(ctx context.Context, actor *model.UserAccount, item model.NewsItem) (string, error) {
	item.Body = r.sanitizer.Sanitize(item.Body)
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if actor != nil && item.AuthorID == "" {
		item.AuthorID = actor.UID
		item.AuthorLabel = actor.DisplayName
	}
	return r.base.Put(ctx, actor, Collection, encode(item))
}

// Update はお知らせ全体を置き換え更新する。
func (r *Repo) Update(ctx context.Context, actor *model.UserAccount, item model.NewsItem) error {
	if item.ID == "" {
		return model.NewInvalidRequestError("news item id is required")
	}
	item.Body = r.sanitizer.Sanitize(item.Body)
	_, err := r.base.Put(ctx, actor, Collection, encode(item))
	return err
}

// Delete は指定IDのお知らせを削除する。
func (r *Repo) Delete(ctx context.Context, actor *model.UserAccount, id string) error {
	return r.base.Remove(ctx, actor, Collection, id)
}

// decode はストアドキュメントをNewsItemに変換する。
// 必須フィールド（title, createdAt）が欠落している場合は除外する。
func decode(doc store.Document) (model.NewsItem, bool) {
	title, ok := doc.Str("title")
	if !ok || title == "" {
		return model.NewsItem{}, false
	}
	createdAt, ok := doc.Time("createdAt")
	if !ok {
		return model.NewsItem{}, false
	}

	return model.NewsItem{
		ID:             doc.ID,
		Title:          title,
		Body:           doc.StrOr("body", ""),
		Topic:          doc.StrOr("topic", ""),
		IsUrgent:       doc.Bool("isUrgent"),
		CreatedAt:      createdAt,
		AuthorID:       doc.StrOr("authorId", ""),
		AuthorLabel:    doc.StrOr("authorLabel", ""),
		AuthorPhotoURL: doc.StrOr("authorPhotoUrl", ""),
	}, true
}

// encode はNewsItemをストアドキュメントに変換する。
func encode(item model.NewsItem) store.Document {
	data := map[string]any{
		"title":     item.Title,
		"body":      item.Body,
		"topic":     item.Topic,
		"isUrgent":  item.IsUrgent,
		"createdAt": item.CreatedAt.UTC().Format(time.RFC3339),
	}
	if item.AuthorID != "" {
		data["authorId"] = item.AuthorID
	}
	if item.AuthorLabel != "" {
		data["authorLabel"] = item.AuthorLabel
	}
	if item.AuthorPhotoURL != "" {
		data["authorPhotoUrl"] = item.AuthorPhotoURL
	}
	return store.Document{ID: item.ID, Data: data}
}
