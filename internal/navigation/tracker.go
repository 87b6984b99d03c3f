package navigation

import (
	"time"

	"github.com/hitoshi/mealbox/internal/state"
)

// Redirect はクライアントに指示する保留中のリダイレクト。
type Redirect struct {
	Route     Route     `json:"route"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// リダイレクト理由
const (
	ReasonProfileMissing = "profile_missing"
	ReasonSignedOut      = "signed_out"
)

// Tracker はデバイスごとの保留中リダイレクトを保持する。
// クライアントが遷移を完了したらAcknowledgeで消す。
type Tracker struct {
	pending *state.Store[*Redirect]
	now     func() time.Time
}

// NewTracker はTrackerを生成する。
func NewTracker() *Tracker {
	return &Tracker{
		pending: state.NewStore[*Redirect](nil),
		now:     time.Now,
	}
}

// RedirectToProfileSetup はプロフィール設定フローへのリダイレクトを保留する。
func (t *Tracker) RedirectToProfileSetup() {
	t.set(RouteProfileSetup, ReasonProfileMissing)
}

// RedirectToSignIn はサインイン画面へのリダイレクトを保留する。
func (t *Tracker) RedirectToSignIn() {
	t.set(RouteSignIn, ReasonSignedOut)
}

func (t *Tracker) set(route Route, reason string) {
	t.pending.Set(&Redirect{Route: route, Reason: reason, CreatedAt: t.now()})
}

// Pending は保留中のリダイレクトを返す。ない場合はnil。
func (t *Tracker) Pending() *Redirect {
	return t.pending.Get()
}

// Acknowledge はクライアントが遷移を完了したことを記録し、保留中のリダイレクトを消す。
func (t *Tracker) Acknowledge() {
	if t.pending.Get() == nil {
		return
	}
	t.pending.Set(nil)
}

// Subscribe はリダイレクトの変更を購読する。
func (t *Tracker) Subscribe(fn func(*Redirect)) (unsubscribe func()) {
	return t.pending.Subscribe(fn)
}
