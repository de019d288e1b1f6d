package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/campushub/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションと紐付くアカウント情報を保存する。
	Create(ctx context.Context, session *model.Session, account *model.UserAccount) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindAccountBySession はセッションに紐付くアカウントを取得する。
	// セッションが無効な場合はnilを返す。
	FindAccountBySession(ctx context.Context, id string) (*model.UserAccount, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションと紐付くアカウント情報を保存する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session, account *model.UserAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, uid, email, display_name, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UID, account.Email, account.DisplayName,
		session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uid, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// FindAccountBySession はセッションに紐付くアカウントを取得する。
func (r *PostgresSessionRepo) FindAccountBySession(ctx context.Context, id string) (*model.UserAccount, error) {
	account := &model.UserAccount{}
	err := r.db.QueryRowContext(ctx,
		`SELECT uid, email, display_name
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&account.UID, &account.Email, &account.DisplayName)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session account: %w", err)
	}

	return account, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
