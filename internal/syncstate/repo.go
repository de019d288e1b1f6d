package syncstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
)

// Recorder は同期リポジトリの計測フック。
type Recorder interface {
	// RecordSnapshot はSuccess状態の配信を記録する。
	RecordSnapshot(domain string)
	// RecordSyncError はError状態の配信を記録する。
	RecordSyncError(domain string)
	// RecordDroppedDocs は必須フィールド欠落で除外したドキュメント数を記録する。
	RecordDroppedDocs(domain string, n int)
	// SubscriptionStarted / SubscriptionStopped はストア購読の開始/終了を記録する。
	SubscriptionStarted(domain string)
	SubscriptionStopped(domain string)
}

// Config は1ドメイン分のリポジトリ構成を表す。
type Config[T any] struct {
	// Name はログ・メトリクス用のドメイン名。
	Name string
	// ErrorMessage はストア購読エラー時の固定ユーザー向け文言。
	ErrorMessage string
	// Query は認証済みUIDに対する購読クエリを返す。
	// グローバルなドメインはuidを無視してよい。
	Query func(uid string) store.Query
	// Decode はストアドキュメントをドメインエンティティに変換する。
	// 必須フィールドが欠落している場合はokをfalseにして除外する。
	Decode func(doc store.Document) (T, bool)
	// Less はドメインごとの整列規則。nilの場合は整列しない。
	Less func(a, b T) bool
}

// Repo は1ドメイン分の同期状態リポジトリ。
// 認証状態ストリームとストア購読を合成し、判別付き状態の
// ライブシーケンスを公開する。
type Repo[T any] struct {
	store  store.Store
	auth   identity.Stream
	cfg    Config[T]
	rec    Recorder
	logger *slog.Logger
}

// New はRepoを生成する。recがnilの場合は計測を行わない。
func New[T any](st store.Store, auth identity.Stream, cfg Config[T], rec Recorder, logger *slog.Logger) *Repo[T] {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Repo[T]{
		store:  st,
		auth:   auth,
		cfg:    cfg,
		rec:    rec,
		logger: logger,
	}
}

// Observe は同期状態のライブシーケンスを開始する。
//
// プロトコル:
//  1. 認証状態ストリームを購読する。
//  2. 認証状態が変わるたびに、まず既存のストア購読を解除する
//     （同時に有効なストア購読は常に最大1つ）。
//  3. サインアウト中はSignedOutを配信する。
//  4. サインイン中はLoadingを配信した後、ストア購読を開始する。
//  5. スナップショットはデコード（欠落ドキュメントは除外）・整列して
//     Successとして配信する。購読エラーは固定文言のErrorとして配信する。
//
// ctxのキャンセルで認証・ストア両方の購読が解除され、チャンネルは
// クローズされる。
func (r *Repo[T]) Observe(ctx context.Context) <-chan State[T] {
	out := make(chan State[T])

	go func() {
		defer close(out)

		authCh := r.auth.Observe(ctx)

		var (
			subCancel context.CancelFunc
			snaps     <-chan store.Snapshot
		)
		detach := func() {
			if subCancel != nil {
				subCancel()
				subCancel = nil
				snaps = nil
				r.rec.SubscriptionStopped(r.cfg.Name)
			}
		}
		defer detach()

		emit := func(st State[T]) bool {
			select {
			case out <- st:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case acct, ok := <-authCh:
				if !ok {
					return
				}

				// 新しい認証イベントを観測した時点で、前の購読の
				// データが混ざらないよう先に解除する。
				detach()

				if acct == nil {
					if !emit(SignedOut[T]()) {
						return
					}
					continue
				}

				if !emit(Loading[T]()) {
					return
				}

				subCtx, cancel := context.WithCancel(ctx)
				ch, err := r.store.Subscribe(subCtx, r.cfg.Query(acct.UID))
				if err != nil {
					cancel()
					r.rec.RecordSyncError(r.cfg.Name)
					r.logger.Error("store subscription failed",
						slog.String("domain", r.cfg.Name),
						slog.String("error", err.Error()),
					)
					if !emit(Failure[T](r.cfg.ErrorMessage, err)) {
						return
					}
					continue
				}
				subCancel = cancel
				snaps = ch
				r.rec.SubscriptionStarted(r.cfg.Name)

			case snap, ok := <-snaps:
				if !ok {
					snaps = nil
					continue
				}

				if snap.Err != nil {
					r.rec.RecordSyncError(r.cfg.Name)
					r.logger.Error("store snapshot error",
						slog.String("domain", r.cfg.Name),
						slog.String("error", snap.Err.Error()),
					)
					if !emit(Failure[T](r.cfg.ErrorMessage, snap.Err)) {
						return
					}
					continue
				}

				items := r.decodeAll(snap.Docs)
				r.rec.RecordSnapshot(r.cfg.Name)
				if !emit(Success(items)) {
					return
				}
			}
		}
	}()

	return out
}

// decodeAll はスナップショットの全ドキュメントをデコード・整列する。
// 必須フィールドが欠落したドキュメントは黙って除外する（部分エラーには
// しないデータ品質許容方針）。
func (r *Repo[T]) decodeAll(docs []store.Document) []T {
	items := make([]T, 0, len(docs))
	dropped := 0
	for _, doc := range docs {
		item, ok := r.cfg.Decode(doc)
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}

	if dropped > 0 {
		r.rec.RecordDroppedDocs(r.cfg.Name, dropped)
		r.logger.Warn("dropped documents missing required fields",
			slog.String("domain", r.cfg.Name),
			slog.Int("count", dropped),
		)
	}

	if r.cfg.Less != nil {
		sort.SliceStable(items, func(i, j int) bool {
			return r.cfg.Less(items[i], items[j])
		})
	}
	return items
}

// Put はドキュメントを書き込む（作成・更新共通）。
// 認証済みのactorを必須とし、IDが未指定の場合は生成して返す。
// キャンセルは失敗結果に変換せず、そのまま伝播する。
func (r *Repo[T]) Put(ctx context.Context, actor *model.UserAccount, collection string, doc store.Document) (string, error) {
	if actor == nil {
		return "", model.NewAuthRequiredError()
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	if err := r.store.Set(ctx, collection, doc); err != nil {
		if isCancellation(err) {
			return "", err
		}
		return "", fmt.Errorf("failed to write %s document: %w", collection, err)
	}
	return doc.ID, nil
}

// Remove はドキュメントを削除する。
// 認証済みのactorを必須とする。キャンセルはそのまま伝播する。
func (r *Repo[T]) Remove(ctx context.Context, actor *model.UserAccount, collection, id string) error {
	if actor == nil {
		return model.NewAuthRequiredError()
	}

	if err := r.store.Delete(ctx, collection, id); err != nil {
		if isCancellation(err) {
			return err
		}
		return fmt.Errorf("failed to delete %s document: %w", collection, err)
	}
	return nil
}

// isCancellation はエラーがキャンセル由来かを判定する。
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// noopRecorder は計測なしのRecorder実装。
type noopRecorder struct{}

func (noopRecorder) RecordSnapshot(string)         {}
func (noopRecorder) RecordSyncError(string)        {}
func (noopRecorder) RecordDroppedDocs(string, int) {}
func (noopRecorder) SubscriptionStarted(string)    {}
func (noopRecorder) SubscriptionStopped(string)    {}
