package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/mealbox/internal/metrics"
	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/state"
)

const categorySubscription = "subscription"

// SubscriptionFinder はユーザーの有効な購読を検索する。該当がない場合はnil, nilを返す。
type SubscriptionFinder interface {
	FindActiveByUserID(ctx context.Context, userID string) (*model.UserSubscription, error)
}

// TierSource はslugでプランを取得する。該当がない場合はnil, nilを返す。
type TierSource interface {
	Tier(ctx context.Context, slug string) (*model.SubscriptionTier, error)
}

// Store はデバイスごとの機能セットを保持する。
// 取得に失敗した場合は既定値にフォールバックし、エラーは外に出さない。
type Store struct {
	subscriptions SubscriptionFinder
	tiers         TierSource
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time

	features *state.Store[model.FeatureSet]
	gens     *state.Generations
}

// NewStore はStoreを生成する。初期値は既定の機能セット。
func NewStore(subscriptions SubscriptionFinder, tiers TierSource, collector metrics.MetricsCollector, logger *slog.Logger) *Store {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		subscriptions: subscriptions,
		tiers:         tiers,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
		features:      state.NewStore(Defaults()),
		gens:          state.NewGenerations(),
	}
}

// Features は現在の機能セットを返す。
func (s *Store) Features() model.FeatureSet {
	return s.features.Get()
}

// Subscribe は機能セットの変更を購読する。
func (s *Store) Subscribe(fn func(model.FeatureSet)) (unsubscribe func()) {
	return s.features.Subscribe(fn)
}

// Load はユーザーの購読とプランを取得して機能セットを更新する。
// 後続のLoadやResetに追い越された結果は破棄される。
func (s *Store) Load(ctx context.Context, userID string) model.FeatureSet {
	gen := s.gens.Next(categorySubscription)

	tier := s.fetchTier(ctx, userID)
	fs := Resolve(tier)

	if !s.gens.IsCurrent(categorySubscription, gen) {
		s.metrics.RecordStaleResult(categorySubscription)
		return s.features.Get()
	}

	if tier != nil {
		s.metrics.RecordEntitlementResolution("tier")
	} else {
		s.metrics.RecordEntitlementResolution("default")
	}
	s.features.Set(fs)
	return fs
}

// Reset は進行中の取得を無効にし、既定の機能セットに戻す。サインアウト時に呼ばれる。
func (s *Store) Reset() {
	s.gens.Next(categorySubscription)
	s.features.Set(Defaults())
}

func (s *Store) fetchTier(ctx context.Context, userID string) *model.SubscriptionTier {
	sub, err := s.subscriptions.FindActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("subscription lookup failed, using default features",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if sub == nil {
		return nil
	}
	if sub.CurrentPeriodEnd != nil && !s.now().Before(*sub.CurrentPeriodEnd) {
		return nil
	}

	tier, err := s.tiers.Tier(ctx, sub.TierSlug)
	if err != nil {
		s.logger.Warn("subscription tier fetch failed, using default features",
			slog.String("user_id", userID),
			slog.String("tier", sub.TierSlug),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return tier
}
