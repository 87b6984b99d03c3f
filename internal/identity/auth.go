package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/state"
)

// ErrNoSession は保持しているセッションがないことを表す。
var ErrNoSession = errors.New("no session")

// EventType は認証状態変更イベントの種別。
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventSignedOut      EventType = "SIGNED_OUT"
)

// Event は認証状態変更の通知。SIGNED_OUTの場合Sessionはnil。
type Event struct {
	Type    EventType
	Session *model.Session
}

// Backend はAuthが利用するIdP操作のインターフェース。
type Backend interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
}

// Auth はデバイスごとの認証セッションを保持し、状態変更を購読者に通知する。
type Auth struct {
	backend   Backend
	jwtSecret string
	now       func() time.Time

	mu      sync.Mutex
	session *model.Session
	events  *state.Store[Event]
}

// NewAuth はAuthを生成する。jwtSecretが空の場合、トークン署名は検証しない。
func NewAuth(backend Backend, jwtSecret string) *Auth {
	return &Auth{
		backend:   backend,
		jwtSecret: jwtSecret,
		now:       time.Now,
		events:    state.NewStore(Event{}),
	}
}

// CurrentSession は保持しているセッションを返す。セッションがない場合はnil。
// 期限切れでリフレッシュトークンがある場合は更新を試みる。
func (a *Auth) CurrentSession(ctx context.Context) (*model.Session, error) {
	a.mu.Lock()
	current := copySession(a.session)
	a.mu.Unlock()

	if current == nil || !current.Expired(a.now()) || current.RefreshToken == "" {
		return current, nil
	}
	return a.Refresh(ctx)
}

// GetUser はアクセストークンに紐づくユーザーをIdPから取得する。
func (a *Auth) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	return a.backend.GetUser(ctx, accessToken)
}

// SetSession はクライアントがサインインで得たトークンを保持し、SIGNED_INを通知する。
func (a *Auth) SetSession(ctx context.Context, accessToken, refreshToken string) (*model.Session, error) {
	claims, err := ParseAccessToken(accessToken, a.jwtSecret)
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       claims.Subject,
		ExpiresAt:    claims.ExpiresAt,
	}

	a.mu.Lock()
	a.session = session
	a.mu.Unlock()

	a.events.Set(Event{Type: EventSignedIn, Session: copySession(session)})
	return copySession(session), nil
}

// Refresh はリフレッシュトークンでセッションを更新し、TOKEN_REFRESHEDを通知する。
func (a *Auth) Refresh(ctx context.Context) (*model.Session, error) {
	a.mu.Lock()
	current := copySession(a.session)
	a.mu.Unlock()

	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoSession
	}

	refreshed, err := a.backend.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	if refreshed.UserID == "" {
		refreshed.UserID = current.UserID
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}

	a.mu.Lock()
	a.session = refreshed
	a.mu.Unlock()

	a.events.Set(Event{Type: EventTokenRefreshed, Session: copySession(refreshed)})
	return copySession(refreshed), nil
}

// SignOut はローカルのセッションを破棄し、IdP側のセッションも無効化する。
// IdPの呼び出しに失敗してもローカルの状態は破棄され、SIGNED_OUTが通知される。
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	current := a.session
	a.session = nil
	a.mu.Unlock()

	var err error
	if current != nil && current.AccessToken != "" {
		err = a.backend.SignOut(ctx, current.AccessToken)
	}

	a.events.Set(Event{Type: EventSignedOut})

	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// OnAuthStateChange は認証状態変更の購読を登録し、購読解除用の関数を返す。
func (a *Auth) OnAuthStateChange(fn func(Event)) (unsubscribe func()) {
	return a.events.Subscribe(fn)
}

func copySession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// compile-time interface check
var _ Backend = (*Client)(nil)
