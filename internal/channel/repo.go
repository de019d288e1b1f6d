// Package channel は質問チャンネルドメインの同期状態リポジトリを提供する。
package channel

import (
	"context"
	"log/slog"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// Collection はチャンネルドキュメントのコレクション名。
const Collection = "channels"

// loadErrorMessage はストア購読エラー時の固定文言。
const loadErrorMessage = "Unable to load channels."

// Repo はチャンネルの同期状態リポジトリ。
// チャンネル一覧はグローバル（全ユーザー共通）の購読。
type Repo struct {
	base *syncstate.Repo[model.Channel]
}

// NewRepo はRepoを生成する。
func NewRepo(st store.Store, auth identity.Stream, rec syncstate.Recorder, logger *slog.Logger) *Repo {
	base := syncstate.New(st, auth, syncstate.Config[model.Channel]{
		Name:         "channels",
		ErrorMessage: loadErrorMessage,
		Query: func(string) store.Query {
			return store.Query{Collection: Collection}
		},
		Decode: decode,
		Less: func(a, b model.Channel) bool {
			if a.Title != b.Title {
				return a.Title < b.Title
			}
			return a.ID < b.ID
		},
	}, rec, logger)

	return &Repo{base: base}
}

// Observe はチャンネル一覧の同期状態ライブシーケンスを開始する。
func (r *Repo) Observe(ctx context.Context) <-chan syncstate.State[model.Channel] {
	return r.base.Observe(ctx)
}

// Create はチャンネルを作成する。IDが未指定の場合は生成して返す。
func (r *Repo) Create(ctx context.Context, actor *model.UserAccount, ch model.Channel) (string, error) {
	if actor != nil && ch.CreatedBy == "" {
		ch.CreatedBy = actor.UID
	}
	return r.base.Put(ctx, actor, Collection, encode(ch))
}

// Update はチャンネル全体を置き換え更新する。
func (r *Repo) Update(ctx context.Context, actor *model.UserAccount, ch model.Channel) error {
	if ch.ID == "" {
		return model.NewInvalidRequestError("channel id is required")
	}
	_, err := r.base.Put(ctx, actor, Collection, encode(ch))
	return err
}

// Delete は指定IDのチャンネルを削除する。
func (r *Repo) Delete(ctx context.Context, actor *model.UserAccount, id string) error {
	return r.base.Remove(ctx, actor, Collection, id)
}

// decode はストアドキュメントをChannelに変換する。
// 必須フィールド（title, topic）が欠落している場合は除外する。
func decode(doc store.Document) (model.Channel, bool) {
	title, ok := doc.Str("title")
	if !ok || title == "" {
		return model.Channel{}, false
	}
	topic, ok := doc.Str("topic")
	if !ok {
		return model.Channel{}, false
	}

	return model.Channel{
		ID:          doc.ID,
		Title:       title,
		Topic:       topic,
		Description: doc.StrOr("description", ""),
		CreatedBy:   doc.StrOr("createdBy", ""),
		IconKey:     doc.StrOr("iconKey", ""),
	}, true
}

// encode はChannelをストアドキュメントに変換する。
func encode(ch model.Channel) store.Document {
	data := map[string]any{
		"title": ch.Title,
		"topic": ch.Topic,
	}
	if ch.Description != "" {
		data["description"] = ch.Description
	}
	if ch.CreatedBy != "" {
		data["createdBy"] = ch.CreatedBy
	}
	if ch.IconKey != "" {
		data["iconKey"] = ch.IconKey
	}
	return store.Document{ID: ch.ID, Data: data}
}
