package identity

import (
	"context"
	"log/slog"

	"github.com/hitoshi/campushub/internal/model"
)

// SessionStream は1つのセッションに束縛された認証状態ストリーム。
// 購読開始時にセッションの現在のアカウント（無効ならnil）を配信し、
// 以降は同一UIDのサインイン/サインアウトイベントを配信する。
type SessionStream struct {
	svc       *Service
	sessionID string
}

// Observe は認証状態のライブシーケンスを開始する。
// 同一状態の連続イベントは重複排除される。ctxのキャンセルで
// チャンネルはクローズされる。
func (s *SessionStream) Observe(ctx context.Context) <-chan *model.UserAccount {
	out := make(chan *model.UserAccount, 1)

	go func() {
		defer close(out)

		events, cancel := s.svc.hub.Subscribe()
		defer cancel()

		// 現在の状態を解決して最初に配信する
		current, err := s.svc.Account(ctx, s.sessionID)
		if err != nil {
			slog.Error("failed to resolve session account",
				slog.String("error", err.Error()),
			)
			current = nil
		}

		send := func(acct *model.UserAccount) bool {
			select {
			case out <- acct:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(current) {
			return
		}

		if current == nil {
			// セッションが紐付くUIDを持たないため、以降の変化はない。
			<-ctx.Done()
			return
		}

		uid := current.UID
		signedIn := true

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.UID != uid {
					continue
				}
				// 連続する同一状態は配信しない
				if (ev.Account != nil) == signedIn {
					continue
				}
				signedIn = ev.Account != nil
				if !send(ev.Account) {
					return
				}
			}
		}
	}()

	return out
}

// compile-time interface check
var _ Stream = (*SessionStream)(nil)
