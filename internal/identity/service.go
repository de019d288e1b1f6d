package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/campushub/internal/model"
)

// adminRole は管理者を表すroleクレームの値。
const adminRole = "admin"

// ProfileFinder はユーザープロフィールの表示名上書きを取得する。
type ProfileFinder interface {
	// Name は指定UIDのプロフィール表示名を返す。未設定の場合は空文字列。
	Name(ctx context.Context, uid string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// IDプロバイダーでの認証、セッション発行、認証状態のブロードキャストを行う。
type Service struct {
	client   Client
	sessions SessionRepository
	hub      *Hub
	profiles ProfileFinder // nilの場合は上書きなし
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	client Client,
	sessions SessionRepository,
	hub *Hub,
	profiles ProfileFinder,
	config ServiceConfig,
) *Service {
	return &Service{
		client:   client,
		sessions: sessions,
		hub:      hub,
		profiles: profiles,
		config:   config,
	}
}

// Hub は認証状態のブロードキャストハブを返す。
func (s *Service) Hub() *Hub {
	return s.hub
}

// SignIn はメールアドレスとパスワードでサインインし、セッションを発行する。
// IDプロバイダーのエラー（*AuthErrorやネットワークエラー）はそのまま返す。
// 呼び出し側はキャンセルを再送出した上で認証失敗分類器に渡すこと。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, *model.UserAccount, error) {
	account, err := s.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	return s.establish(ctx, account)
}

// SignUp は新規アカウントを登録し、セッションを発行する。
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*model.Session, *model.UserAccount, error) {
	account, err := s.client.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, nil, err
	}
	return s.establish(ctx, account)
}

// establish はサインイン済みアカウントのセッションを発行し、
// 認証状態の変化をブロードキャストする。
func (s *Service) establish(ctx context.Context, account *model.UserAccount) (*model.Session, *model.UserAccount, error) {
	// プロフィールの表示名上書きを適用する
	if s.profiles != nil {
		name, err := s.profiles.Name(ctx, account.UID)
		if err != nil {
			slog.Warn("failed to look up profile name",
				slog.String("uid", account.UID),
				slog.String("error", err.Error()),
			)
		} else if name != "" {
			account.DisplayName = name
		}
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UID:       account.UID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session, account); err != nil {
		return nil, nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.hub.Broadcast(Event{UID: account.UID, Account: account})

	slog.Info("user signed in",
		slog.String("uid", account.UID),
	)
	return session, account, nil
}

// Logout はセッションを破棄し、サインアウトをブロードキャストする。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if session != nil {
		s.hub.Broadcast(Event{UID: session.UID, Account: nil})
		slog.Info("user signed out", slog.String("uid", session.UID))
	}
	return nil
}

// Account はセッションから現在のアカウントを取得する。
// セッションが無効な場合はnilを返す（サインアウト状態）。
func (s *Service) Account(ctx context.Context, sessionID string) (*model.UserAccount, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.sessions.FindAccountBySession(ctx, sessionID)
}

// IsAdmin は指定UIDが管理者roleクレームを持つかを返す。
func (s *Service) IsAdmin(ctx context.Context, uid string) (bool, error) {
	role, err := s.client.RoleClaim(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("failed to look up role claim: %w", err)
	}
	return role == adminRole, nil
}

// SessionStream は指定セッションに束縛された認証状態ストリームを返す。
func (s *Service) SessionStream(sessionID string) *SessionStream {
	return &SessionStream{svc: s, sessionID: sessionID}
}

// AdminStream は指定セッションに束縛された管理者権限ストリームを返す。
func (s *Service) AdminStream(sessionID string, logger *slog.Logger) *AdminStream {
	return NewAdminStream(s.client, s.SessionStream(sessionID), logger)
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
