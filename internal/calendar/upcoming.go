package calendar

import (
	"sort"
	"time"

	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/timeparse"
)

// Upcoming は指定日以降のカレンダーイベントを抽出して返す。
// 日付昇順、同日は時刻範囲の開始時刻昇順（解析不能・"-"は末尾）、
// 同時刻はタイトル昇順に整列する。
func Upcoming(events []model.CalendarEvent, today time.Time) []model.CalendarEvent {
	day := today.Truncate(24 * time.Hour)

	result := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !ev.Date.Truncate(24 * time.Hour).Before(day) {
			result = append(result, ev)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		sa := timeparse.ParseRangeStart(a.Time).Minutes()
		sb := timeparse.ParseRangeStart(b.Time).Minutes()
		if sa != sb {
			return sa < sb
		}
		return a.Title < b.Title
	})

	return result
}
