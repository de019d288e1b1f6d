// Package model はドメインモデルを定義する。
package model

import "time"

// UserAccount は認証済みユーザーを表す。
// 認証状態が変わるたびに丸ごと置き換えられ、サインアウトで消滅する。
type UserAccount struct {
	UID         string
	Email       string // 未設定の場合は空文字列
	DisplayName string // 未設定の場合は空文字列
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UID       string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Profile はユーザープロフィール（users/{uid}ドキュメント）を表す。
// 表示名の上書きにのみ使用される。
type Profile struct {
	UID  string
	Name string
}
