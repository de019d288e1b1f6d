// Package timeparse は予定表・カレンダーで使う自由記述の時刻表現を解析する。
package timeparse

import (
	"strconv"
	"strings"
)

// Clock は解析済みの時刻を表す。Valid=false は「時刻なし」を意味し、
// ソート時は常に末尾に並ぶ。
type Clock struct {
	Hour   int
	Minute int
	Valid  bool
}

// Minutes は0時からの経過分を返す。Valid=falseの場合は
// どの有効時刻よりも大きい番兵値を返す。
func (c Clock) Minutes() int {
	if !c.Valid {
		return 24*60 + 1
	}
	return c.Hour*60 + c.Minute
}

// ParseClock は "H:mm" または "HH:mm" 形式の時刻を解析する。
// "-"・空文字・解析不能な入力は「時刻なし」として返す。
func ParseClock(s string) Clock {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return Clock{}
	}

	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return Clock{}
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return Clock{}
	}

	return Clock{Hour: hour, Minute: minute, Valid: true}
}

// ParseRangeStart は "開始-終了" 形式の時刻範囲から開始時刻を解析する。
// 最初の "-" より前の部分のみを時刻として扱う。
func ParseRangeStart(s string) Clock {
	start, _, _ := strings.Cut(s, "-")
	return ParseClock(start)
}
