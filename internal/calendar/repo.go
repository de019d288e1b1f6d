// Package calendar は全体カレンダードメインの同期状態リポジトリと
// 「今後の予定」導出を提供する。
package calendar

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
	"github.com/hitoshi/campushub/internal/timeparse"
)

// Collection はカレンダーイベントドキュメントのコレクション名。
const Collection = "calendarEvents"

// loadErrorMessage はストア購読エラー時の固定文言。
const loadErrorMessage = "Unable to load calendar events."

// Repo は全体カレンダーの同期状態リポジトリ。
// カレンダーは全ユーザー共通のグローバル購読。
type Repo struct {
	base *syncstate.Repo[model.CalendarEvent]
}

// NewRepo はRepoを生成する。
func NewRepo(st store.Store, auth identity.Stream, rec syncstate.Recorder, logger *slog.Logger) *Repo {
	base := syncstate.New(st, auth, syncstate.Config[model.CalendarEvent]{
		Name:         "calendar",
		ErrorMessage: loadErrorMessage,
		Query: func(string) store.Query {
			return store.Query{Collection: Collection}
		},
		Decode: decode,
		Less: func(a, b model.CalendarEvent) bool {
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			sa := timeparse.ParseRangeStart(a.Time).Minutes()
			sb := timeparse.ParseRangeStart(b.Time).Minutes()
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

// Observe は全体カレンダーの同期状態ライブシーケンスを開始する。
func (r *Repo) Observe(ctx context.Context) <-chan syncstate.State[model.CalendarEvent] {
	return r.base.Observe(ctx)
}

// Create はカレンダーイベントを作成する。
// ドキュメントIDには数値IDの10進表記を用いる。
func (r *Repo) Create(ctx context.Context, actor *model.UserAccount, ev model.CalendarEvent) (string, error) {
	if ev.ID == 0 {
		ev.ID = time.Now().UnixMilli()
	}
	return r.base.Put(ctx, actor, Collection, encode(ev))
}

// Update はカレンダーイベント全体を置き換え更新する。
func (r *Repo) Update(ctx context.Context, actor *model.UserAccount, ev model.CalendarEvent) error {
	if ev.ID == 0 {
		return model.NewInvalidRequestError("calendar event id is required")
	}
	_, err := r.base.Put(ctx, actor, Collection, encode(ev))
	return err
}

// Delete は指定IDのカレンダーイベントを削除する。
func (r *Repo) Delete(ctx context.Context, actor *model.UserAccount, id int64) error {
	return r.base.Remove(ctx, actor, Collection, strconv.FormatInt(id, 10))
}

// decode はストアドキュメントをCalendarEventに変換する。
// 数値idフィールドがない場合はドキュメントIDから導出する
// （10進数として解釈できればその値、できなければFNVハッシュ）。
func decode(doc store.Document) (model.CalendarEvent, bool) {
	title, ok := doc.Str("title")
	if !ok || title == "" {
		return model.CalendarEvent{}, false
	}
	date, ok := doc.Date("date")
	if !ok {
		return model.CalendarEvent{}, false
	}

	id, ok := doc.Int("id")
	if !ok {
		id = deriveID(doc.ID)
	}

	return model.CalendarEvent{
		ID:          id,
		Date:        date,
		Title:       title,
		Time:        doc.StrOr("time", "-"),
		Location:    doc.StrOr("location", ""),
		Description: doc.StrOr("description", ""),
	}, true
}

// encode はCalendarEventをストアドキュメントに変換する。
func encode(ev model.CalendarEvent) store.Document {
	data := map[string]any{
		"id":    ev.ID,
		"title": ev.Title,
		"date":  ev.Date.Format(time.DateOnly),
		"time":  ev.Time,
	}
	if ev.Location != "" {
		data["location"] = ev.Location
	}
	if ev.Description != "" {
		data["description"] = ev.Description
	}
	return store.Document{ID: strconv.FormatInt(ev.ID, 10), Data: data}
}

// deriveID はドキュメントIDから安定した数値IDを導出する。
func deriveID(docID string) int64 {
	if n, err := strconv.ParseInt(docID, 10, 64); err == nil {
		return n
	}
	h := fnv.New64a()
	h.Write([]byte(docID))
	return int64(h.Sum64() & (1<<62 - 1))
}
