// Package model はドメインモデルを定義する。
package model

import "time"

// ScheduleEvent はユーザー個人の時間割イベントを表す。
// 時刻はフリーテキスト（"H:mm"形式が基本、未設定は"-"）で保持する。
type ScheduleEvent struct {
	ID          string
	Title       string
	Date        time.Time // 日付のみ有効（UTC深夜0時に正規化）
	StartTime   string    // "-"は未設定
	EndTime     string    // "-"は未設定
	Location    string
	Category    string
	IsEveryWeek bool
}

// CalendarEvent は全体カレンダーのイベントを表す。
// IDは数値またはドキュメントから導出した値。
type CalendarEvent struct {
	ID          int64
	Date        time.Time // 日付のみ有効（UTC深夜0時に正規化）
	Title       string
	Time        string // "HH:mm-HH:mm"形式の範囲、または"-"
	Location    string
	Description string
}
