package content

import (
	"github.com/hitoshi/mealbox/internal/model"
	"github.com/tidwall/gjson"
)

// recipeEntry はレシピとその全体での並び順（作成順）。
type recipeEntry struct {
	recipe model.Recipe
	rank   int
}

func decodeCategory(r gjson.Result) model.Category {
	return model.Category{
		ID:          r.Get("id").String(),
		Title:       r.Get("title").String(),
		Slug:        r.Get("slug").String(),
		Description: r.Get("description").String(),
		ImageURL:    r.Get("imageUrl").String(),
	}
}

func decodeRecipe(r gjson.Result) recipeEntry {
	rec := model.Recipe{
		ID:          r.Get("id").String(),
		Title:       r.Get("title").String(),
		Slug:        r.Get("slug").String(),
		Description: r.Get("description").String(),
		CookingTime: int(r.Get("cookingTime").Int()),
		Servings:    int(r.Get("servings").Int()),
		ImageURL:    r.Get("imageUrl").String(),
	}
	for _, ing := range r.Get("ingredients").Array() {
		rec.Ingredients = append(rec.Ingredients, model.Ingredient{
			Name:   ing.Get("name").String(),
			Amount: ing.Get("amount").String(),
			Unit:   ing.Get("unit").String(),
		})
	}
	for _, step := range r.Get("steps").Array() {
		if text := step.String(); text != "" {
			rec.Steps = append(rec.Steps, text)
		}
	}
	return recipeEntry{recipe: rec, rank: int(r.Get("rank").Int())}
}

// decodeTier はプランを読み取る。CMS上の数値項目は数値でも文字列でも受け付け、
// 文字列としてResolverに渡す。
func decodeTier(r gjson.Result) model.SubscriptionTier {
	return model.SubscriptionTier{
		ID:              r.Get("id").String(),
		Slug:            r.Get("slug").String(),
		Title:           r.Get("title").String(),
		Price:           r.Get("price").Float(),
		AccessType:      model.AccessType(r.Get("accessType").String()),
		MaxRecipes:      r.Get("maxRecipes").String(),
		StorageDuration: r.Get("storageDuration").String(),
		CanFavorite:     r.Get("canFavorite").Bool(),
		MaxFavorites:    r.Get("maxFavorites").String(),
		ExpertPlanning:  r.Get("expertPlanning").Bool(),
	}
}

func decodeOnboarding(r gjson.Result) model.OnboardingConfig {
	cfg := model.OnboardingConfig{
		Title:  r.Get("title").String(),
		Slides: []model.OnboardingSlide{},
	}
	for _, s := range r.Get("slides").Array() {
		cfg.Slides = append(cfg.Slides, model.OnboardingSlide{
			Title:    s.Get("title").String(),
			Body:     s.Get("body").String(),
			ImageURL: s.Get("imageUrl").String(),
		})
	}
	return cfg
}

// exists はGROQの[0]射影が文書を返したかを判定する。該当なしの場合resultはnullになる。
func exists(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}
