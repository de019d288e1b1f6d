package identity

import (
	"context"
	"log/slog"
)

// AdminStream は管理者権限のライブシーケンスを提供する。
// 認証状態ストリームに追従し、サインインのたびにroleクレームを参照して
// 管理者かどうかの真偽値を配信する。サインアウト中は常にfalse。
type AdminStream struct {
	client Client
	auth   Stream
	logger *slog.Logger
}

// NewAdminStream はAdminStreamを生成する。
func NewAdminStream(client Client, auth Stream, logger *slog.Logger) *AdminStream {
	return &AdminStream{client: client, auth: auth, logger: logger}
}

// Observe は管理者権限のライブシーケンスを開始する。
// 連続する同一値は重複排除される。クレーム参照に失敗した場合は
// falseとして扱う（権限は明示的に確認できた場合のみ付与する）。
func (a *AdminStream) Observe(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)

	go func() {
		defer close(out)

		accounts := a.auth.Observe(ctx)

		first := true
		last := false
		emit := func(v bool) bool {
			if !first && v == last {
				return true
			}
			first = false
			last = v
			select {
			case out <- v:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case acct, ok := <-accounts:
				if !ok {
					return
				}

				admin := false
				if acct != nil {
					role, err := a.client.RoleClaim(ctx, acct.UID)
					if err != nil {
						a.logger.Warn("failed to look up role claim",
							slog.String("uid", acct.UID),
							slog.String("error", err.Error()),
						)
					} else {
						admin = role == adminRole
					}
				}

				if !emit(admin) {
					return
				}
			}
		}
	}()

	return out
}
