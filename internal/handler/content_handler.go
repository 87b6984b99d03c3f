package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealbox/internal/model"
)

// ContentService はコンテンツハンドラーが必要とするサービスインターフェース。
// content.Serviceが満たす。
type ContentService interface {
	Categories(ctx context.Context) ([]model.Category, error)
	RecipesByCategory(ctx context.Context, slug string, features model.FeatureSet) ([]model.Recipe, error)
	Recipe(ctx context.Context, slug string, features model.FeatureSet) (*model.Recipe, error)
	Tiers(ctx context.Context) ([]model.SubscriptionTier, error)
	Onboarding(ctx context.Context) (*model.OnboardingConfig, error)
}

// ContentHandler はCMSのコンテンツを返すHTTPハンドラー。
// レシピはデバイスの機能セットに応じてロックされる。
type ContentHandler struct {
	service ContentService
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(service ContentService) *ContentHandler {
	return &ContentHandler{service: service}
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories
func (h *ContentHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// ListRecipes はカテゴリに属するレシピ一覧を返す。
// GET /api/categories/{slug}/recipes
func (h *ContentHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	recipes, err := h.service.RecipesByCategory(r.Context(), chi.URLParam(r, "slug"), d.Entitlements.Features())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

// GetRecipe はレシピの詳細を返す。
// GET /api/recipes/{slug}
func (h *ContentHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	recipe, err := h.service.Recipe(r.Context(), chi.URLParam(r, "slug"), d.Entitlements.Features())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// ListTiers はプラン一覧を返す。サインイン前のプラン紹介でも使われる。
// GET /api/tiers
func (h *ContentHandler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.service.Tiers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tiers)
}

// GetOnboarding はオンボーディング設定を返す。
// GET /api/onboarding
func (h *ContentHandler) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Onboarding(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
