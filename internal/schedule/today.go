package schedule

import (
	"sort"
	"time"

	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/timeparse"
)

// TodayEvents は指定日に該当する時間割イベントを抽出して返す。
// 該当条件: イベント日付が当日と一致、または毎週繰り返しかつ曜日が一致。
// 開始時刻の昇順（解析不能・"-"は末尾）、同時刻はタイトル昇順に整列する。
func TodayEvents(events []model.ScheduleEvent, today time.Time) []model.ScheduleEvent {
	day := today.Truncate(24 * time.Hour)

	result := make([]model.ScheduleEvent, 0, len(events))
	for _, ev := range events {
		if matchesDay(ev, day) {
			result = append(result, ev)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		si := timeparse.ParseClock(result[i].StartTime).Minutes()
		sj := timeparse.ParseClock(result[j].StartTime).Minutes()
		if si != sj {
			return si < sj
		}
		return result[i].Title < result[j].Title
	})

	return result
}

// matchesDay はイベントが指定日に該当するかを返す。
func matchesDay(ev model.ScheduleEvent, day time.Time) bool {
	evDay := ev.Date.Truncate(24 * time.Hour)
	if evDay.Equal(day) {
		return true
	}
	return ev.IsEveryWeek && evDay.Weekday() == day.Weekday()
}
