package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// notifyChannel はドキュメント変更通知に使用するLISTEN/NOTIFYチャンネル名。
// 通知ペイロードには変更があったコレクション名が入る。
const notifyChannel = "doc_change"

const (
	listenerMinReconnect = 1 * time.Second
	listenerMaxReconnect = 30 * time.Second
	// listenerPingInterval は接続維持のためのPing間隔。
	listenerPingInterval = 90 * time.Second
)

// PostgresStore はPostgreSQLをバックエンドとするドキュメントストア。
// documentsテーブルにJSONBでドキュメントを保持し、書き込みトリガーの
// NOTIFYをpq.Listenerで受信してリアルタイム購読を実現する。
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// subscription は1つのリアルタイム購読を表す。
// チャンネルはcap 1で、配信が追いつかない場合は最新スナップショットで
// 置き換える（latest-wins）。
type subscription struct {
	q  Query
	ch chan Snapshot

	mu     sync.Mutex
	closed bool
}

// send はスナップショットを購読者に配信する。
// 購読解除後の送信は無視される。保留中の古いスナップショットは
// 最新のもので置き換えられる。
func (sub *subscription) send(snap Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- snap:
	default:
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
}

// shutdown は購読を終了しチャンネルをクローズする。
func (sub *subscription) shutdown() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// NewPostgresStore はPostgresStoreを生成する。
// databaseURLはNOTIFY受信用のpq.Listener接続に使用する。
// リアルタイム配信を開始するにはRunを呼び出すこと。
func NewPostgresStore(db *sql.DB, databaseURL string, logger *slog.Logger) *PostgresStore {
	listener := pq.NewListener(databaseURL, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error("store listener event",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		})

	return &PostgresStore{
		db:       db,
		listener: listener,
		logger:   logger,
		subs:     make(map[*subscription]struct{}),
	}
}

// Run はNOTIFYイベントの受信ループを実行する。
// ctxのキャンセルまでブロックする。再接続が発生した場合は通知を
// 取りこぼしている可能性があるため、全購読を更新する。
func (s *PostgresStore) Run(ctx context.Context) error {
	if err := s.listener.Listen(notifyChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}
	defer s.listener.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-s.listener.Notify:
			if n == nil {
				// 再接続イベント。変更を取りこぼした可能性がある。
				s.refresh(ctx, "")
				continue
			}
			s.refresh(ctx, n.Extra)
		case <-time.After(listenerPingInterval):
			if err := s.listener.Ping(); err != nil {
				s.logger.Error("store listener ping failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// refresh は指定コレクションの購読者全員に最新スナップショットを配信する。
// collectionが空の場合は全購読者が対象。
func (s *PostgresStore) refresh(ctx context.Context, collection string) {
	s.mu.Lock()
	targets := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		if collection == "" || sub.q.Collection == collection {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range targets {
		sub.send(s.query(ctx, sub.q))
	}
}

// Subscribe はクエリのリアルタイム購読を開始する。
// 初回スナップショットを即座に配信する。ctxのキャンセルで購読は
// 登録解除され、チャンネルはクローズされる。
func (s *PostgresStore) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	sub := &subscription{
		q:  q,
		ch: make(chan Snapshot, 1),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	// 初回スナップショット（cap 1のため必ず入る）
	sub.send(s.query(ctx, q))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		sub.shutdown()
	}()

	return sub.ch, nil
}

// query はクエリを1回実行してスナップショットを生成する。
// JSONとしてデコードできないドキュメントはスキップする。
func (s *PostgresStore) query(ctx context.Context, q Query) Snapshot {
	var (
		rows *sql.Rows
		err  error
	)
	if q.Field != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, data FROM documents
			 WHERE collection = $1 AND data->>$2 = $3
			 ORDER BY id`,
			q.Collection, q.Field, q.Value,
		)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`,
			q.Collection,
		)
	}
	if err != nil {
		return Snapshot{Err: fmt.Errorf("failed to query collection %s: %w", q.Collection, err)}
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return Snapshot{Err: fmt.Errorf("failed to scan document: %w", err)}
		}

		data := make(map[string]any)
		if err := json.Unmarshal(raw, &data); err != nil {
			s.logger.Warn("skipping undecodable document",
				slog.String("collection", q.Collection),
				slog.String("id", id),
			)
			continue
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return Snapshot{Err: fmt.Errorf("failed to read documents: %w", err)}
	}

	return Snapshot{Docs: docs}
}

// Set はドキュメント全体をアップサートする。
func (s *PostgresStore) Set(ctx context.Context, collection string, doc Document) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (collection, id) DO UPDATE SET
		     data = EXCLUDED.data,
		     updated_at = now()`,
		collection, doc.ID, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// Delete は指定IDのドキュメントを削除する。存在しない場合もエラーにしない。
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}

	return &Document{ID: id, Data: data}, nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
