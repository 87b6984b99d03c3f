// Package session は認証セッションのライフサイクルとプロフィール有無の判定を管理する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/mealbox/internal/identity"
	"github.com/hitoshi/mealbox/internal/metrics"
	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/navigation"
	"github.com/hitoshi/mealbox/internal/state"
)

// フェッチ種別（世代管理のキー）
const (
	categorySession = "session"
	categoryProfile = "profile"
)

// ErrNotSignedIn は検証済みのユーザーがいないことを表す。
var ErrNotSignedIn = errors.New("not signed in")

// IdentityProvider はSession Storeが利用するIdP操作のインターフェース。
type IdentityProvider interface {
	CurrentSession(ctx context.Context) (*model.Session, error)
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn func(identity.Event)) (unsubscribe func())
}

// ProfileFinder はユーザーIDでプロフィールを検索する。
// 該当行がない場合はnil, nilを返す。
type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

// Redirector はクライアントへのリダイレクト指示を受け付ける。
type Redirector interface {
	RedirectToProfileSetup()
	RedirectToSignIn()
}

// State はSession Storeが公開する状態。
type State struct {
	Session       *model.Session      `json:"session"`
	User          *model.User         `json:"user"`
	Loading       bool                `json:"loading"`
	ProfileStatus model.ProfileStatus `json:"profile_status"`
}

// NavigationInput はリダイレクト規則の入力に変換する。
func (s State) NavigationInput() navigation.Input {
	return navigation.Input{
		Loading:       s.Loading,
		HasSession:    s.Session != nil,
		ProfileStatus: s.ProfileStatus,
	}
}

// Store はセッション、ユーザー、読み込み中フラグ、プロフィール有無を保持する。
// 初期取得と認証状態変更の通知は同じ検証処理を通る。
type Store struct {
	identity   IdentityProvider
	profiles   ProfileFinder
	redirector Redirector
	metrics    metrics.MetricsCollector
	logger     *slog.Logger

	state *state.Store[State]
	gens  *state.Generations

	mu          sync.Mutex
	ctx         context.Context
	unsubscribe func()
}

// NewStore はStoreを生成する。初期状態は読み込み中・プロフィール未確定。
func NewStore(
	idp IdentityProvider,
	profiles ProfileFinder,
	redirector Redirector,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Store {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		identity:   idp,
		profiles:   profiles,
		redirector: redirector,
		metrics:    collector,
		logger:     logger,
		state:      state.NewStore(State{Loading: true, ProfileStatus: model.ProfileUnknown}),
		gens:       state.NewGenerations(),
	}
}

// Init は認証状態変更を購読し、現在のセッションを取得して検証する。
// ctxはデバイスの寿命に紐づくコンテキストで、通知による再検証にも使われる。
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	if s.unsubscribe == nil {
		s.unsubscribe = s.identity.OnAuthStateChange(s.handleAuthChange)
	}
	s.mu.Unlock()

	session, err := s.identity.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn("failed to get current session", slog.String("error", err.Error()))
		session = nil
	}
	s.validate(ctx, session)
}

// Close は認証状態変更の購読を解除する。
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State は現在の状態を返す。
func (s *Store) State() State {
	return s.state.Get()
}

// Subscribe は状態変更を購読する。
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

// SignOut はユーザー操作によるサインアウトを行う。
func (s *Store) SignOut(ctx context.Context) error {
	s.metrics.RecordSignOut("user")
	err := s.identity.SignOut(ctx)
	s.clear()
	return err
}

// RefreshProfile は現在のユーザーのプロフィール有無を再判定する。
// プロフィール設定の完了後に呼ばれる。
func (s *Store) RefreshProfile(ctx context.Context) (model.ProfileStatus, error) {
	current := s.state.Get()
	if current.User == nil {
		return model.ProfileUnknown, ErrNotSignedIn
	}
	return s.refreshProfile(ctx, current.User.ID), nil
}

func (s *Store) handleAuthChange(event identity.Event) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Debug("auth state changed", slog.String("event", string(event.Type)))
	s.validate(ctx, event.Session)
}

// validate はセッションに紐づくユーザーをIdPから再取得して検証する。
// 検証に失敗した場合、またはユーザーが削除済みの場合はセッションを破棄してサインアウトする。
func (s *Store) validate(ctx context.Context, session *model.Session) {
	gen := s.gens.Next(categorySession)

	if session == nil {
		s.clear()
		return
	}

	user, err := s.identity.GetUser(ctx, session.AccessToken)
	if !s.gens.IsCurrent(categorySession, gen) {
		s.metrics.RecordStaleResult(categorySession)
		return
	}

	if err != nil || user == nil {
		if err != nil {
			s.metrics.RecordSessionValidation("error")
			s.logger.Warn("session validation failed",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		} else {
			s.metrics.RecordSessionValidation("invalid")
			s.logger.Info("session user no longer exists", slog.String("user_id", session.UserID))
		}
		s.forceSignOut(ctx)
		return
	}

	s.metrics.RecordSessionValidation("valid")
	s.state.Update(func(st State) State {
		status := model.ProfileUnknown
		if st.User != nil && st.User.ID == user.ID {
			// トークン更新など同一ユーザーの場合は判定済みの状態を維持する
			status = st.ProfileStatus
		}
		return State{Session: session, User: user, Loading: false, ProfileStatus: status}
	})

	s.refreshProfile(ctx, user.ID)
}

// refreshProfile はユーザーIDでプロフィールを検索し、有無を状態に反映する。
// 「行なし」はプロフィールなしとして扱い、それ以外のエラーもログを残してプロフィールなしとする。
func (s *Store) refreshProfile(ctx context.Context, userID string) model.ProfileStatus {
	gen := s.gens.Next(categoryProfile)

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if !s.gens.IsCurrent(categoryProfile, gen) {
		s.metrics.RecordStaleResult(categoryProfile)
		return s.state.Get().ProfileStatus
	}

	status := model.ProfilePresent
	switch {
	case err != nil:
		s.metrics.RecordProfileLookup("error")
		s.logger.Error("profile lookup failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		status = model.ProfileMissing
	case profile == nil:
		s.metrics.RecordProfileLookup("missing")
		status = model.ProfileMissing
	default:
		s.metrics.RecordProfileLookup("present")
	}

	applied := false
	s.state.Update(func(st State) State {
		if st.User == nil || st.User.ID != userID {
			return st
		}
		applied = true
		st.ProfileStatus = status
		return st
	})
	if !applied {
		s.metrics.RecordStaleResult(categoryProfile)
		return s.state.Get().ProfileStatus
	}

	if status == model.ProfileMissing && s.redirector != nil {
		s.redirector.RedirectToProfileSetup()
	}
	return status
}

// forceSignOut は検証失敗時にローカル状態を破棄し、サインインへ誘導する。
func (s *Store) forceSignOut(ctx context.Context) {
	s.clear()
	s.metrics.RecordSignOut("invalid_session")
	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.Warn("sign out after failed validation returned error", slog.String("error", err.Error()))
	}
	if s.redirector != nil {
		s.redirector.RedirectToSignIn()
	}
}

// clear はセッションを破棄し、進行中のプロフィール検索の結果も無効にする。
func (s *Store) clear() {
	s.gens.Next(categoryProfile)
	s.state.Update(func(State) State {
		return State{Loading: false, ProfileStatus: model.ProfileUnknown}
	})
}
