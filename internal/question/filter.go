package question

import "github.com/hitoshi/campushub/internal/model"

// FilterState は質問一覧のフィルタ選択を保持する。
// 未回答タブが空で回答済みが存在する初回に限り、回答済みタブへ
// 自動で切り替える。自動切替は一度だけで、以降はユーザーの
// 明示的な選択のみが反映される。
type FilterState struct {
	active       model.QuestionFilter
	autoSwitched bool
}

// NewFilterState は未回答タブを初期選択とした状態を返す。
func NewFilterState() *FilterState {
	return &FilterState{active: model.QuestionFilterOpen}
}

// Active は現在選択中のフィルタを返す。
func (s *FilterState) Active() model.QuestionFilter {
	return s.active
}

// Set はユーザーの明示的なフィルタ選択を反映する。
// 自動切替の消費済みフラグはリセットしない。
func (s *FilterState) Set(f model.QuestionFilter) {
	s.active = f
}

// Apply は質問一覧を現在のフィルタで絞り込んで返す。
// 未回答タブ選択中に未回答が0件かつ回答済みが1件以上あれば、
// 一度だけ回答済みタブへ切り替えてから絞り込む。
func (s *FilterState) Apply(questions []model.Question) []model.Question {
	open := 0
	answered := 0
	for _, q := range questions {
		if isAnswered(q) {
			answered++
		} else {
			open++
		}
	}

	if s.active == model.QuestionFilterOpen && !s.autoSwitched && open == 0 && answered > 0 {
		s.active = model.QuestionFilterAnswered
		s.autoSwitched = true
	}

	result := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		if s.matches(q) {
			result = append(result, q)
		}
	}
	return result
}

func (s *FilterState) matches(q model.Question) bool {
	if s.active == model.QuestionFilterAnswered {
		return isAnswered(q)
	}
	return !isAnswered(q)
}

// isAnswered は回答済みフィルタに属するかを返す。
// ANSWEREDに加えLOCKEDも回答済み側に含める。
func isAnswered(q model.Question) bool {
	return q.Status == model.QuestionStatusAnswered || q.Status == model.QuestionStatusLocked
}
