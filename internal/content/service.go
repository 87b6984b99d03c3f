package content

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/security"
	"github.com/tidwall/gjson"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
	excerptLength    = 120
)

// Querier はGROQクエリを実行する。
type Querier interface {
	Query(ctx context.Context, query string, params map[string]interface{}) (gjson.Result, error)
}

// ServiceConfig はコンテンツサービスの設定。
type ServiceConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Service はCMSのクエリ結果をキャッシュし、ドメインモデルに変換して返す。
// レシピの詳細はプランの上限に応じてロックされる。
type Service struct {
	querier   Querier
	sanitizer security.ContentSanitizerService
	cache     *expirable.LRU[string, string]
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(querier Querier, sanitizer security.ContentSanitizerService, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		querier:   querier,
		sanitizer: sanitizer,
		cache:     expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:    logger,
	}
}

// Categories はカテゴリ一覧を返す。
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	result, err := s.query(ctx, queryCategories, nil)
	if err != nil {
		return nil, err
	}

	categories := []model.Category{}
	for _, r := range result.Array() {
		c := decodeCategory(r)
		c.Description = s.sanitizer.Sanitize(c.Description)
		categories = append(categories, c)
	}
	return categories, nil
}

// RecipesByCategory はカテゴリに属するレシピ一覧を返す。
// 機能セットのレシピ上限を超えるレシピはロックされ、概要以外を含まない。
func (s *Service) RecipesByCategory(ctx context.Context, slug string, features model.FeatureSet) ([]model.Recipe, error) {
	category, err := s.query(ctx, queryCategoryBySlug, map[string]interface{}{"slug": slug})
	if err != nil {
		return nil, err
	}
	if !exists(category) {
		return nil, model.NewCategoryNotFoundError(slug)
	}

	result, err := s.query(ctx, queryRecipesByCat, map[string]interface{}{"slug": slug})
	if err != nil {
		return nil, err
	}

	entries := make([]recipeEntry, 0, len(result.Array()))
	for _, r := range result.Array() {
		entries = append(entries, decodeRecipe(r))
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].rank < entries[j].rank })

	recipes := make([]model.Recipe, 0, len(entries))
	for _, e := range entries {
		rec := s.present(e, features)
		rec.Ingredients = nil
		rec.Steps = nil
		recipes = append(recipes, rec)
	}
	return recipes, nil
}

// Recipe はslugでレシピの詳細を返す。ロックされたレシピはRECIPE_LOCKEDになる。
func (s *Service) Recipe(ctx context.Context, slug string, features model.FeatureSet) (*model.Recipe, error) {
	result, err := s.query(ctx, queryRecipeBySlug, map[string]interface{}{"slug": slug})
	if err != nil {
		return nil, err
	}
	if !exists(result) {
		return nil, model.NewRecipeNotFoundError(slug)
	}

	rec := s.present(decodeRecipe(result), features)
	if rec.Locked {
		return nil, model.NewRecipeLockedError(slug)
	}
	return &rec, nil
}

// RecipeByID はIDでレシピの概要を返す。該当がない場合はnil, nilを返す。
func (s *Service) RecipeByID(ctx context.Context, id string) (*model.Recipe, error) {
	result, err := s.query(ctx, queryRecipeByID, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if !exists(result) {
		return nil, nil
	}
	rec := decodeRecipe(result).recipe
	return &rec, nil
}

// Tiers はプラン一覧を価格順に返す。
func (s *Service) Tiers(ctx context.Context) ([]model.SubscriptionTier, error) {
	result, err := s.query(ctx, queryTiers, nil)
	if err != nil {
		return nil, err
	}

	tiers := []model.SubscriptionTier{}
	for _, r := range result.Array() {
		tiers = append(tiers, decodeTier(r))
	}
	return tiers, nil
}

// Tier はslugでプランを返す。該当がない場合はnil, nilを返す。
func (s *Service) Tier(ctx context.Context, slug string) (*model.SubscriptionTier, error) {
	result, err := s.query(ctx, queryTierBySlug, map[string]interface{}{"slug": slug})
	if err != nil {
		return nil, err
	}
	if !exists(result) {
		return nil, nil
	}
	tier := decodeTier(result)
	return &tier, nil
}

// Onboarding はオンボーディング設定を返す。未設定の場合はスライドなしの設定を返す。
func (s *Service) Onboarding(ctx context.Context) (*model.OnboardingConfig, error) {
	result, err := s.query(ctx, queryOnboardingConfig, nil)
	if err != nil {
		return nil, err
	}
	if !exists(result) {
		return &model.OnboardingConfig{Slides: []model.OnboardingSlide{}}, nil
	}
	cfg := decodeOnboarding(result)
	return &cfg, nil
}

// present はプランの上限に応じてロック状態を決め、説明文を整形する。
func (s *Service) present(e recipeEntry, features model.FeatureSet) model.Recipe {
	rec := e.recipe
	rec.Excerpt = s.sanitizer.PlainText(rec.Description, excerptLength)
	rec.Description = s.sanitizer.Sanitize(rec.Description)

	if !features.HasFullRecipeAccess && features.MaxRecipes != nil && e.rank >= *features.MaxRecipes {
		rec.Locked = true
		rec.Description = ""
		rec.Ingredients = nil
		rec.Steps = nil
	}
	return rec
}

// query はキャッシュを参照してからクエリを実行する。
// CMSの失敗はログに残し、CONTENT_UNAVAILABLEとして返す。
func (s *Service) query(ctx context.Context, query string, params map[string]interface{}) (gjson.Result, error) {
	key := cacheKey(query, params)
	if raw, ok := s.cache.Get(key); ok {
		return gjson.Parse(raw), nil
	}

	result, err := s.querier.Query(ctx, query, params)
	if err != nil {
		s.logger.Error("cms query failed", slog.String("error", err.Error()))
		return gjson.Result{}, model.NewContentUnavailableError()
	}

	raw := result.Raw
	if raw == "" {
		raw = "null"
	}
	s.cache.Add(key, raw)
	return gjson.Parse(raw), nil
}

func cacheKey(query string, params map[string]interface{}) string {
	if len(params) == 0 {
		return query
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(query)
	for _, name := range names {
		b.WriteString("\x00")
		b.WriteString(name)
		b.WriteString("=")
		if v, ok := params[name].(string); ok {
			b.WriteString(v)
		}
	}
	return b.String()
}
