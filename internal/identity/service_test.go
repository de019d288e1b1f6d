package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/campushub/internal/model"
)

// stubClient はIDプロバイダークライアントのスタブ。
type stubClient struct {
	account *model.UserAccount
	err     error
	role    string
	roleErr error
}

func (c *stubClient) SignIn(_ context.Context, email, _ string) (*model.UserAccount, error) {
	if c.err != nil {
		return nil, c.err
	}
	acct := *c.account
	acct.Email = email
	return &acct, nil
}

func (c *stubClient) SignUp(_ context.Context, email, _, displayName string) (*model.UserAccount, error) {
	if c.err != nil {
		return nil, c.err
	}
	acct := *c.account
	acct.Email = email
	acct.DisplayName = displayName
	return &acct, nil
}

func (c *stubClient) RoleClaim(context.Context, string) (string, error) {
	return c.role, c.roleErr
}

// memorySessionRepo はインメモリのセッションリポジトリ。
type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	accounts map[string]*model.UserAccount
	createN  int
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{
		sessions: make(map[string]*model.Session),
		accounts: make(map[string]*model.UserAccount),
	}
}

func (r *memorySessionRepo) Create(_ context.Context, session *model.Session, account *model.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	r.accounts[session.ID] = account
	r.createN++
	return nil
}

func (r *memorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id], nil
}

func (r *memorySessionRepo) FindAccountBySession(_ context.Context, id string) (*model.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id], nil
}

func (r *memorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	delete(r.accounts, id)
	return nil
}

func (r *memorySessionRepo) DeleteExpired(context.Context) (int64, error) { return 0, nil }

// stubProfiles は固定の表示名を返すProfileFinderスタブ。
type stubProfiles struct {
	name string
	err  error
}

func (p *stubProfiles) Name(context.Context, string) (string, error) {
	return p.name, p.err
}

func newTestService(client Client, repo SessionRepository, profiles ProfileFinder) *Service {
	return NewService(client, repo, NewHub(), profiles, ServiceConfig{SessionMaxAge: 3600})
}

func TestService_SignIn_EstablishesSession(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(&stubClient{account: &model.UserAccount{UID: "u-1", DisplayName: "田中"}}, repo, nil)

	events, cancel := svc.Hub().Subscribe()
	defer cancel()

	session, account, err := svc.SignIn(context.Background(), "student@example.com", "password123")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session.ID == "" || len(session.ID) != 64 {
		t.Errorf("session ID = %q, want 64 hex chars", session.ID)
	}
	if session.UID != "u-1" {
		t.Errorf("session UID = %q, want u-1", session.UID)
	}
	wantExpiry := time.Now().Add(time.Hour)
	if session.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || session.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want ~1h from now", session.ExpiresAt)
	}
	if account.Email != "student@example.com" {
		t.Errorf("account email = %q", account.Email)
	}
	if repo.createN != 1 {
		t.Errorf("session creates = %d, want 1", repo.createN)
	}

	ev := recvEvent(t, events)
	if ev.UID != "u-1" || ev.Account == nil {
		t.Errorf("broadcast event = %+v, want sign-in for u-1", ev)
	}
}

func TestService_SignIn_ProfileNameOverridesDisplayName(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(
		&stubClient{account: &model.UserAccount{UID: "u-1", DisplayName: "プロバイダー名"}},
		repo,
		&stubProfiles{name: "キャンパス名"},
	)

	_, account, err := svc.SignIn(context.Background(), "a@example.com", "p")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if account.DisplayName != "キャンパス名" {
		t.Errorf("DisplayName = %q, want profile override", account.DisplayName)
	}
}

func TestService_SignIn_ProfileLookupFailureIsNonFatal(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(
		&stubClient{account: &model.UserAccount{UID: "u-1", DisplayName: "プロバイダー名"}},
		repo,
		&stubProfiles{err: errors.New("store down")},
	)

	_, account, err := svc.SignIn(context.Background(), "a@example.com", "p")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if account.DisplayName != "プロバイダー名" {
		t.Errorf("DisplayName = %q, want provider name kept", account.DisplayName)
	}
}

func TestService_SignIn_ProviderErrorPassesThrough(t *testing.T) {
	authErr := &AuthError{Code: "ERROR_WRONG_PASSWORD", StatusCode: 400}
	svc := newTestService(&stubClient{err: authErr}, newMemorySessionRepo(), nil)

	_, _, err := svc.SignIn(context.Background(), "a@example.com", "wrong")
	var got *AuthError
	if !errors.As(err, &got) || got.Code != "ERROR_WRONG_PASSWORD" {
		t.Errorf("SignIn() error = %v, want provider error unchanged", err)
	}
}

func TestService_Logout_DeletesSessionAndBroadcastsSignOut(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(&stubClient{account: &model.UserAccount{UID: "u-1"}}, repo, nil)

	session, _, err := svc.SignIn(context.Background(), "a@example.com", "p")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	events, cancel := svc.Hub().Subscribe()
	defer cancel()

	if err := svc.Logout(context.Background(), session.ID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if acct, _ := svc.Account(context.Background(), session.ID); acct != nil {
		t.Error("Account() after logout should be nil")
	}

	ev := recvEvent(t, events)
	if ev.UID != "u-1" || ev.Account != nil {
		t.Errorf("broadcast event = %+v, want sign-out for u-1", ev)
	}
}

func TestService_Logout_RequiresSessionID(t *testing.T) {
	svc := newTestService(&stubClient{}, newMemorySessionRepo(), nil)
	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("Logout(\"\") error = nil, want error")
	}
}

func TestService_Account_EmptySessionIsSignedOut(t *testing.T) {
	svc := newTestService(&stubClient{}, newMemorySessionRepo(), nil)
	acct, err := svc.Account(context.Background(), "")
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if acct != nil {
		t.Errorf("Account() = %+v, want nil", acct)
	}
}

func TestService_IsAdmin(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		roleErr error
		want    bool
		wantErr bool
	}{
		{name: "admin role", role: "admin", want: true},
		{name: "other role", role: "student", want: false},
		{name: "no role", role: "", want: false},
		{name: "lookup failure", roleErr: errors.New("boom"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&stubClient{role: tt.role, roleErr: tt.roleErr}, newMemorySessionRepo(), nil)
			got, err := svc.IsAdmin(context.Background(), "u-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsAdmin() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionStream_EmitsCurrentThenFollowsChanges(t *testing.T) {
	repo := newMemorySessionRepo()
	svc := newTestService(&stubClient{account: &model.UserAccount{UID: "u-1"}}, repo, nil)

	session, _, err := svc.SignIn(context.Background(), "a@example.com", "p")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := svc.SessionStream(session.ID).Observe(ctx)

	first := recvAccount(t, states)
	if first == nil || first.UID != "u-1" {
		t.Fatalf("first state = %+v, want signed-in u-1", first)
	}

	// 同一UIDの再サインインは状態が変わらないため配信されない。
	svc.Hub().Broadcast(Event{UID: "u-1", Account: &model.UserAccount{UID: "u-1"}})
	// 別UIDのイベントも無視される。
	svc.Hub().Broadcast(Event{UID: "u-2", Account: nil})
	// 自UIDのサインアウトで初めてnilが配信される。
	svc.Hub().Broadcast(Event{UID: "u-1", Account: nil})

	next := recvAccount(t, states)
	if next != nil {
		t.Errorf("next state = %+v, want nil after sign-out", next)
	}
}

func TestSessionStream_UnknownSessionEmitsSignedOut(t *testing.T) {
	svc := newTestService(&stubClient{}, newMemorySessionRepo(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := svc.SessionStream("missing").Observe(ctx)
	if acct := recvAccount(t, states); acct != nil {
		t.Errorf("state = %+v, want nil for unknown session", acct)
	}
}

func TestSessionStream_CancelClosesChannel(t *testing.T) {
	svc := newTestService(&stubClient{}, newMemorySessionRepo(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	states := svc.SessionStream("missing").Observe(ctx)
	recvAccount(t, states)
	cancel()

	select {
	case _, ok := <-states:
		if ok {
			t.Error("channel should close after cancel")
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for channel close")
	}
}

func recvAccount(t *testing.T, ch <-chan *model.UserAccount) *model.UserAccount {
	t.Helper()
	select {
	case acct := <-ch:
		return acct
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for account state")
	}
	return nil
}
