// Package schedule はユーザー個人の時間割ドメインの同期状態リポジトリと
// 「今日の予定」導出を提供する。
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
	"github.com/hitoshi/campushub/internal/timeparse"
)

// Collection は時間割ドキュメントのコレクション名。
const Collection = "schedule"

// loadErrorMessage はストア購読エラー時の固定文言。
const loadErrorMessage = "Unable to load your schedule. Check your connection."

// Repo は時間割の同期状態リポジトリ。
// 購読は認証済みユーザー自身のイベントのみに絞られる。
type Repo struct {
	base *syncstate.Repo[model.ScheduleEvent]
}

// NewRepo はRepoを生成する。
func NewRepo(st store.Store, auth identity.Stream, rec syncstate.Recorder, logger *slog.Logger) *Repo {
	base := syncstate.New(st, auth, syncstate.Config[model.ScheduleEvent]{
		Name:         "schedule",
		ErrorMessage: loadErrorMessage,
		Query: func(uid string) store.Query {
			return store.Query{Collection: Collection, Field: "ownerId", Value: uid}
		},
		Decode: decode,
		Less: func(a, b model.ScheduleEvent) bool {
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			sa := timeparse.ParseClock(a.StartTime).Minutes()
			sb := timeparse.ParseClock(b.StartTime).Minutes()
			if sa != sb {
				return sa < sb
			}
			if a.Title != b.Title {
				return a.Title < b.Title
			}
			return a.ID < b.ID
		},
	}, rec, logger)

	return &Repo{base: base}
}

// Observe は時間割の同期状態ライブシーケンスを開始する。
func (r *Repo) Observe(ctx context.Context) <-chan syncstate.State[model.ScheduleEvent] {
	return r.base.Observe(ctx)
}

// Create は時間割イベントを作成する。IDが未指定の場合は生成して返す。
func (r *Repo) Create(ctx context.Context, actor *model.UserAccount, ev model.ScheduleEvent) (string, error) {
	if actor == nil {
		return "", model.NewAuthRequiredError()
	}
	return r.base.Put(ctx, actor, Collection, encode(ev, actor.UID))
}

// Update は時間割イベント全体を置き換え更新する。
func (r *Repo) Update(ctx context.Context, actor *model.UserAccount, ev model.ScheduleEvent) error {
	if ev.ID == "" {
		return model.NewInvalidRequestError("schedule event id is required")
	}
	if actor == nil {
		return model.NewAuthRequiredError()
	}
	_, err := r.base.Put(ctx, actor, Collection, encode(ev, actor.UID))
	return err
}

// Delete は指定IDの時間割イベントを削除する。
func (r *Repo) Delete(ctx context.Context, actor *model.UserAccount, id string) error {
	return r.base.Remove(ctx, actor, Collection, id)
}

// decode はストアドキュメントをScheduleEventに変換する。
// 必須フィールド（title, date）が欠落している場合は除外する。
func decode(doc store.Document) (model.ScheduleEvent, bool) {
	title, ok := doc.Str("title")
	if !ok || title == "" {
		return model.ScheduleEvent{}, false
	}
	date, ok := doc.Date("date")
	if !ok {
		return model.ScheduleEvent{}, false
	}

	return model.ScheduleEvent{
		ID:          doc.ID,
		Title:       title,
		Date:        date,
		StartTime:   doc.StrOr("startTime", "-"),
		EndTime:     doc.StrOr("endTime", "-"),
		Location:    doc.StrOr("location", ""),
		Category:    doc.StrOr("category", ""),
		IsEveryWeek: doc.Bool("isEveryWeek"),
	}, true
}

// encode はScheduleEventをストアドキュメントに変換する。
func encode(ev model.ScheduleEvent, ownerID string) store.Document {
	start := ev.StartTime
	if start == "" {
		start = "-"
	}
	end := ev.EndTime
	if end == "" {
		end = "-"
	}

	data := map[string]any{
		"ownerId":     ownerID,
		"title":       ev.Title,
		"date":        ev.Date.Format(time.DateOnly),
		"startTime":   start,
		"endTime":     end,
		"isEveryWeek": ev.IsEveryWeek,
	}
	if ev.Location != "" {
		data["location"] = ev.Location
	}
	if ev.Category != "" {
		data["category"] = ev.Category
	}
	return store.Document{ID: ev.ID, Data: data}
}
