package model

import "time"

// AccessType はレシピへのアクセス範囲を表す。
type AccessType string

const (
	// AccessLimited はレシピ数に上限があるプラン。
	AccessLimited AccessType = "limited"
	// AccessFull は全レシピにアクセスできるプラン。
	AccessFull AccessType = "full"
)

// UnboundedSentinel はCMS上で「上限なし」を表す文字列。
const UnboundedSentinel = "uendelig"

// 保存期間の定義値。
const (
	StorageDuration7Days     = "7"
	StorageDuration30Days    = "30"
	StorageDurationUnbounded = UnboundedSentinel
)

// SubscriptionTier はCMSから取得したサブスクリプションプランの生レコード。
// MaxRecipesはAccessTypeがlimitedの場合のみ、MaxFavoritesはCanFavoriteがtrueの場合のみ意味を持つ。
// 数値項目はCMS上で数値と文字列が混在するため、文字列のまま保持する。
type SubscriptionTier struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Price           float64    `json:"price"`
	AccessType      AccessType `json:"access_type"`
	MaxRecipes      string     `json:"max_recipes,omitempty"`
	StorageDuration string     `json:"storage_duration"`
	CanFavorite     bool       `json:"can_favorite"`
	MaxFavorites    string     `json:"max_favorites,omitempty"`
	ExpertPlanning  bool       `json:"expert_planning"`
}

// FeatureSet はプランから正規化された機能フラグの集合。
// 上限値のnilは無制限を表す。
type FeatureSet struct {
	HasFullRecipeAccess   bool   `json:"has_full_recipe_access"`
	MaxRecipes            *int   `json:"max_recipes"`
	StorageDuration       string `json:"storage_duration"`
	CanSaveFavorites      bool   `json:"can_save_favorites"`
	MaxFavorites          *int   `json:"max_favorites"`
	HasExpertMealPlanning bool   `json:"has_expert_meal_planning"`
}

// StorageDays は保存期間を日数で返す。無制限の場合はokがfalseになる。
func (f FeatureSet) StorageDays() (days int, ok bool) {
	switch f.StorageDuration {
	case StorageDuration7Days:
		return 7, true
	case StorageDuration30Days:
		return 30, true
	default:
		return 0, false
	}
}

// UserSubscription はユーザーとプランの紐付けを表す。
type UserSubscription struct {
	UserID           string
	TierSlug         string
	Status           string
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SubscriptionStatusActive は有効な購読を示すステータス値。
const SubscriptionStatusActive = "active"

// Favorite はユーザーがお気に入り登録したレシピを表す。
// ExpiresAtがnilの場合は無期限に保存される。
type Favorite struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	RecipeID  string     `json:"recipe_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
