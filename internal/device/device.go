// Package device はデバイスごとの状態コンテナ一式とその寿命を管理する。
// 状態はパッケージ変数ではなくDeviceが所有し、Registryが生成と破棄を行う。
package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/mealbox/internal/cart"
	"github.com/hitoshi/mealbox/internal/entitlement"
	"github.com/hitoshi/mealbox/internal/identity"
	"github.com/hitoshi/mealbox/internal/metrics"
	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/navigation"
	"github.com/hitoshi/mealbox/internal/session"
)

// Deps はDeviceの生成に必要な共有依存。
// CartSnapshotsがnilの場合、カートは永続化されない。
type Deps struct {
	Identity      identity.Backend
	JWTSecret     string
	Profiles      session.ProfileFinder
	Subscriptions entitlement.SubscriptionFinder
	Tiers         entitlement.TierSource
	CartSnapshots cart.SnapshotStore
	Metrics       metrics.MetricsCollector
	Logger        *slog.Logger
}

// Snapshot はクライアントへ送るデバイス状態の全体像。
type Snapshot struct {
	Session      session.State        `json:"session"`
	Route        navigation.Route     `json:"route"`
	Redirect     *navigation.Redirect `json:"redirect"`
	Cart         model.Cart           `json:"cart"`
	Entitlements model.FeatureSet     `json:"entitlements"`
}

// Device は1台のクライアントに対応する状態コンテナの束。
type Device struct {
	ID           string
	Auth         *identity.Auth
	Session      *session.Store
	Cart         *cart.Store
	Entitlements *entitlement.Store
	Redirects    *navigation.Tracker

	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	userID      string
	lastSeen    time.Time
	unsubscribe func()
	closed      bool
}

// New はDeviceを生成する。Startを呼ぶまでセッションは読み込み中のまま。
func New(id string, deps Deps) *Device {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("device_id", id))

	ctx, cancel := context.WithCancel(context.Background())

	auth := identity.NewAuth(deps.Identity, deps.JWTSecret)
	redirects := navigation.NewTracker()

	return &Device{
		ID:           id,
		Auth:         auth,
		Session:      session.NewStore(auth, deps.Profiles, redirects, deps.Metrics, logger),
		Cart:         cart.NewStore(deps.CartSnapshots, deps.Metrics, logger),
		Entitlements: entitlement.NewStore(deps.Subscriptions, deps.Tiers, deps.Metrics, logger),
		Redirects:    redirects,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		lastSeen:     time.Now(),
	}
}

// Start はセッションの変化に機能セットとカートの紐付けを連動させ、Session Storeを初期化する。
func (d *Device) Start() {
	d.mu.Lock()
	if d.unsubscribe == nil {
		d.unsubscribe = d.Session.Subscribe(d.onSessionChange)
	}
	d.mu.Unlock()

	d.Session.Init(d.ctx)
}

// Close は購読を解除し、進行中の処理のコンテキストをキャンセルする。
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	d.Session.Close()
	d.cancel()
}

// Context はデバイスの寿命に紐づくコンテキストを返す。
func (d *Device) Context() context.Context {
	return d.ctx
}

// UserID は検証済みユーザーのIDを返す。サインインしていない場合は空文字。
func (d *Device) UserID() string {
	st := d.Session.State()
	if st.Session == nil || st.User == nil {
		return ""
	}
	return st.User.ID
}

// Snapshot は現在のデバイス状態を返す。
func (d *Device) Snapshot() Snapshot {
	st := d.Session.State()
	return Snapshot{
		Session:      st,
		Route:        navigation.Resolve(st.NavigationInput()),
		Redirect:     d.Redirects.Pending(),
		Cart:         d.Cart.Snapshot(),
		Entitlements: d.Entitlements.Features(),
	}
}

// OnChange はいずれかのストアが変化したときにfnを呼ぶ。
func (d *Device) OnChange(fn func()) (unsubscribe func()) {
	unsubs := []func(){
		d.Session.Subscribe(func(session.State) { fn() }),
		d.Cart.Subscribe(func(model.Cart) { fn() }),
		d.Entitlements.Subscribe(func(model.FeatureSet) { fn() }),
		d.Redirects.Subscribe(func(*navigation.Redirect) { fn() }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (d *Device) touch(now time.Time) {
	d.mu.Lock()
	d.lastSeen = now
	d.mu.Unlock()
}

func (d *Device) idleSince(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return now.Sub(d.lastSeen)
}

// onSessionChange は検証済みユーザーが変わったときだけ機能セットとカートを切り替える。
// トークン更新やプロフィール判定の変化では何もしない。
func (d *Device) onSessionChange(st session.State) {
	next := ""
	if st.Session != nil && st.User != nil {
		next = st.User.ID
	}

	d.mu.Lock()
	if next == d.userID {
		d.mu.Unlock()
		return
	}
	d.userID = next
	d.mu.Unlock()

	if next == "" {
		d.logger.Debug("device signed out")
		d.Entitlements.Reset()
		d.Cart.Detach()
		return
	}

	d.logger.Debug("device signed in", slog.String("user_id", next))
	d.Entitlements.Load(d.ctx, next)
	d.Cart.Attach(d.ctx, next)
}
