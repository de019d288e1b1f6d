// Package store はリモートドキュメントストアの抽象を定義する。
// コレクション単位のクエリに対するリアルタイム購読と、認証済みの
// 読み書きを提供する。
package store

import (
	"context"
	"time"
)

// Document はストア上の1ドキュメントを表す。
// Dataはデコード済みのJSONオブジェクト。
type Document struct {
	ID   string
	Data map[string]any
}

// Str はトップレベルフィールドを文字列として取得する。
// フィールドが存在しない、または文字列でない場合はokがfalseになる。
func (d Document) Str(key string) (string, bool) {
	v, ok := d.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StrOr はトップレベルフィールドを文字列として取得する。
// 取得できない場合はfallbackを返す。
func (d Document) StrOr(key, fallback string) string {
	if s, ok := d.Str(key); ok {
		return s
	}
	return fallback
}

// Int はトップレベルフィールドを整数として取得する。
// JSON数値はfloat64でデコードされるため、両方の型を受け付ける。
func (d Document) Int(key string) (int64, bool) {
	switch v := d.Data[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// Bool はトップレベルフィールドを真偽値として取得する。
// 取得できない場合はfalseを返す。
func (d Document) Bool(key string) bool {
	v, ok := d.Data[key].(bool)
	return ok && v
}

// Time はトップレベルフィールドをRFC3339形式の時刻として取得する。
func (d Document) Time(key string) (time.Time, bool) {
	s, ok := d.Str(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Date はトップレベルフィールドをISO日付（"2006-01-02"）として取得する。
// 結果はUTC深夜0時に正規化される。
func (d Document) Date(key string) (time.Time, bool) {
	s, ok := d.Str(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Query はコレクションに対する購読クエリを表す。
// Fieldが空でない場合、data->>'Field' = Value の等値フィルタを適用する。
type Query struct {
	Collection string
	Field      string
	Value      string
}

// Snapshot はリアルタイムクエリが配信する結果を表す。
// Errが非nilの場合、その購読はエラー状態であり以降の配信は保証されない。
type Snapshot struct {
	Docs []Document
	Err  error
}

// Store はドキュメントストアのインターフェース。
type Store interface {
	// Subscribe はクエリのリアルタイム購読を開始する。
	// 初回スナップショットを即座に配信し、以降はコレクションの変更ごとに
	// 最新の結果を配信する。ctxのキャンセルで購読は解除され、チャンネルは
	// クローズされる。
	Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error)

	// Set はドキュメント全体をアップサートする（置き換え書き込み）。
	Set(ctx context.Context, collection string, doc Document) error

	// Delete は指定IDのドキュメントを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, collection, id string) error

	// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, collection, id string) (*Document, error)
}
