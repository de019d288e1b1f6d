package identity

import (
	"context"
	"sync"

	"github.com/hitoshi/campushub/internal/model"
)

// Stream は認証状態のライブシーケンスを表す。
// 購読開始時に現在の状態（アカウントまたはnil）を1回配信し、以降は
// 変化のたびに配信する。nilはサインアウト状態を意味する。
type Stream interface {
	Observe(ctx context.Context) <-chan *model.UserAccount
}

// Event は認証状態の変化を表す。Accountがnilの場合はサインアウト。
type Event struct {
	UID     string
	Account *model.UserAccount
}

// Hub は認証状態の変化を購読者にブロードキャストする。
// サインイン/サインアウト操作のたびにServiceから通知される。
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe は認証イベントの購読を開始する。
// 返されたキャンセル関数で購読を解除し、チャンネルをクローズする。
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast はイベントを全購読者に配信する。
// 受信が追いつかない購読者へのイベントは破棄される。
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
