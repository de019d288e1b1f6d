package timeparse

import "testing"

func TestParseClock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Clock
	}{
		{"H:mm形式", "9:00", Clock{Hour: 9, Minute: 0, Valid: true}},
		{"HH:mm形式", "13:45", Clock{Hour: 13, Minute: 45, Valid: true}},
		{"深夜0時", "0:00", Clock{Hour: 0, Minute: 0, Valid: true}},
		{"終端23:59", "23:59", Clock{Hour: 23, Minute: 59, Valid: true}},
		{"前後空白は無視", " 10:30 ", Clock{Hour: 10, Minute: 30, Valid: true}},
		{"空文字は時刻なし", "", Clock{}},
		{"ハイフンは時刻なし", "-", Clock{}},
		{"コロンなしは時刻なし", "900", Clock{}},
		{"時が範囲外", "24:00", Clock{}},
		{"分が範囲外", "12:60", Clock{}},
		{"分が1桁は不正", "9:5", Clock{}},
		{"分が3桁は不正", "9:005", Clock{}},
		{"数値でない", "ab:cd", Clock{}},
		{"負の時", "-1:00", Clock{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseClock(tt.input); got != tt.want {
				t.Errorf("ParseClock(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestClock_Minutes(t *testing.T) {
	if got := (Clock{Hour: 9, Minute: 30, Valid: true}).Minutes(); got != 570 {
		t.Errorf("Minutes() = %d, want 570", got)
	}

	// 時刻なしはどの有効時刻よりも大きい番兵値
	invalid := Clock{}.Minutes()
	latest := (Clock{Hour: 23, Minute: 59, Valid: true}).Minutes()
	if invalid <= latest {
		t.Errorf("時刻なしのMinutes() = %d は 23:59 の %d より大きくなければならない", invalid, latest)
	}
}

func TestParseRangeStart(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Clock
	}{
		{"範囲の開始を解析", "9:00-10:30", Clock{Hour: 9, Minute: 0, Valid: true}},
		{"終了なしの範囲", "14:00-", Clock{Hour: 14, Minute: 0, Valid: true}},
		{"単独時刻", "8:15", Clock{Hour: 8, Minute: 15, Valid: true}},
		{"ハイフンのみ", "-", Clock{}},
		{"空文字", "", Clock{}},
		{"開始が不正", "あした-10:00", Clock{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRangeStart(tt.input); got != tt.want {
				t.Errorf("ParseRangeStart(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}
