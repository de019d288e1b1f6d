// Package model はドメインモデルを定義する。
package model

import "time"

// NewsItem はお知らせ記事を表す。
// 更新はドキュメント全体の置き換え、削除はドキュメントの削除で行われる。
type NewsItem struct {
	ID             string
	Title          string
	Body           string // サニタイズ済みHTML
	Topic          string
	IsUrgent       bool
	CreatedAt      time.Time
	AuthorID       string // 任意
	AuthorLabel    string // 任意
	AuthorPhotoURL string // 任意
}
