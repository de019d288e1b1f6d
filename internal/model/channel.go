// Package model はドメインモデルを定義する。
package model

// Channel は質問チャンネルを表す。
// 管理者操作で作成され、更新は常にドキュメント全体の置き換えで行われる。
type Channel struct {
	ID          string
	Title       string
	Topic       string
	Description string // 任意
	CreatedBy   string // 任意
	IconKey     string // 任意（存在しないバリアントもある）
}
