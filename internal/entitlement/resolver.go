// Package entitlement はサブスクリプションプランを正規化された機能セットに変換する。
package entitlement

import (
	"strconv"
	"strings"

	"github.com/hitoshi/mealbox/internal/model"
)

// プラン未加入時の既定値
const (
	DefaultMaxRecipes      = 10
	DefaultStorageDuration = model.StorageDuration7Days
	DefaultMaxFavorites    = 5
)

// Defaults はプラン未加入時の機能セットを返す。
func Defaults() model.FeatureSet {
	return model.FeatureSet{
		HasFullRecipeAccess:   false,
		MaxRecipes:            intPtr(DefaultMaxRecipes),
		StorageDuration:       DefaultStorageDuration,
		CanSaveFavorites:      true,
		MaxFavorites:          intPtr(DefaultMaxFavorites),
		HasExpertMealPlanning: false,
	}
}

// Resolve はプランから機能セットを求める。tierがnilの場合は既定値を返す。
// 同じプランからは常に同じ機能セットが得られ、エラーにはならない。
// 解釈できない値は項目ごとに既定値で補う。
func Resolve(tier *model.SubscriptionTier) model.FeatureSet {
	if tier == nil {
		return Defaults()
	}

	fs := model.FeatureSet{
		HasFullRecipeAccess:   tier.AccessType == model.AccessFull,
		StorageDuration:       parseStorageDuration(tier.StorageDuration),
		CanSaveFavorites:      tier.CanFavorite,
		HasExpertMealPlanning: tier.ExpertPlanning,
	}

	// maxRecipesはlimitedの場合のみ意味を持つ
	if !fs.HasFullRecipeAccess {
		fs.MaxRecipes = parseLimit(tier.MaxRecipes, DefaultMaxRecipes)
	}

	// maxFavoritesはお気に入り可の場合のみ意味を持つ
	if fs.CanSaveFavorites {
		fs.MaxFavorites = parseLimit(tier.MaxFavorites, DefaultMaxFavorites)
	} else {
		fs.MaxFavorites = intPtr(0)
	}

	return fs
}

// IsUnbounded は値が無制限を表す文字列かを返す。大文字小文字は区別しない。
func IsUnbounded(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), model.UnboundedSentinel)
}

// parseLimit は上限値を解析する。無制限はnil、解釈できない値は既定値になる。
func parseLimit(v string, fallback int) *int {
	if IsUnbounded(v) {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return intPtr(fallback)
	}
	return intPtr(n)
}

func parseStorageDuration(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == model.StorageDuration7Days, v == model.StorageDuration30Days:
		return v
	case IsUnbounded(v):
		return model.StorageDurationUnbounded
	default:
		return DefaultStorageDuration
	}
}

func intPtr(n int) *int {
	return &n
}
