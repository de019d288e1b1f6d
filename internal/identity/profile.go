package identity

import (
	"context"
	"fmt"

	"github.com/hitoshi/campushub/internal/store"
)

// usersCollection はユーザープロフィールを保持するコレクション名。
const usersCollection = "users"

// StoreProfileFinder はドキュメントストアのusersコレクションから
// プロフィール表示名を取得するProfileFinder実装。
type StoreProfileFinder struct {
	store store.Store
}

// NewStoreProfileFinder はStoreProfileFinderを生成する。
func NewStoreProfileFinder(s store.Store) *StoreProfileFinder {
	return &StoreProfileFinder{store: s}
}

// Name は指定UIDのプロフィール表示名を返す。
// ドキュメントまたはnameフィールドが存在しない場合は空文字列を返す。
func (f *StoreProfileFinder) Name(ctx context.Context, uid string) (string, error) {
	doc, err := f.store.Get(ctx, usersCollection, uid)
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	if doc == nil {
		return "", nil
	}
	return doc.StrOr("name", ""), nil
}

// compile-time interface check
var _ ProfileFinder = (*StoreProfileFinder)(nil)
