package question

import "github.com/hitoshi/campushub/internal/model"

// MetaIndex は既読マーカーを質問IDで引けるようにしたインデックス。
type MetaIndex map[string]model.QuestionMeta

// NewMetaIndex は既読マーカー一覧からインデックスを構築する。
func NewMetaIndex(metas []model.QuestionMeta) MetaIndex {
	idx := make(MetaIndex, len(metas))
	for _, m := range metas {
		idx[m.QuestionID] = m
	}
	return idx
}

// Engaged は閲覧者が質問に関与しているかを返す。
// 関与 = 自分が投稿した質問、または既読マーカーが存在する質問。
func Engaged(q model.Question, viewerID string, metas MetaIndex) bool {
	if q.AuthorID == viewerID {
		return true
	}
	_, ok := metas[q.ID]
	return ok
}

// UnreadCount は質問の未読回答数を返す。
// 関与していない質問は常に0。関与している場合は
// max(0, 回答数 - 既読回答数) を返す（マーカーが回答数より
// 進んでいても負にはならない）。
func UnreadCount(q model.Question, viewerID string, metas MetaIndex) int {
	if !Engaged(q, viewerID, metas) {
		return 0
	}

	lastSeen := 0
	if m, ok := metas[q.ID]; ok {
		lastSeen = m.LastSeenAnswers
	}

	if n := q.AnswerCount - lastSeen; n > 0 {
		return n
	}
	return 0
}

// TotalUnread は質問一覧全体の未読回答数合計を返す。
func TotalUnread(questions []model.Question, viewerID string, metas MetaIndex) int {
	total := 0
	for _, q := range questions {
		total += UnreadCount(q, viewerID, metas)
	}
	return total
}
