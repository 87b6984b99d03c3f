package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealbox/internal/middleware"
	"github.com/hitoshi/mealbox/internal/model"
)

// FavoriteService はお気に入りハンドラーが必要とするサービスインターフェース。
// favorite.Serviceが満たす。
type FavoriteService interface {
	List(ctx context.Context, userID string) ([]*model.Favorite, error)
	Add(ctx context.Context, userID, recipeID string, features model.FeatureSet) (*model.Favorite, error)
	Remove(ctx context.Context, userID, recipeID string) error
}

// FavoriteHandler はお気に入り管理のHTTPハンドラー。
type FavoriteHandler struct {
	service FavoriteService
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{service: service}
}

// addFavoriteRequest はお気に入り登録リクエストのボディ。
type addFavoriteRequest struct {
	RecipeID string `json:"recipe_id"`
}

// ListFavorites は有効期限内のお気に入り一覧を返す。
// GET /api/favorites
func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	favorites, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favorites)
}

// AddFavorite はレシピをお気に入りに登録する。
// 可否と上限、保存期間はデバイスの機能セットに従う。
// POST /api/favorites
func (h *FavoriteHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req addFavoriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	favorite, err := h.service.Add(r.Context(), userID, req.RecipeID, d.Entitlements.Features())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, favorite)
}

// RemoveFavorite はお気に入りを解除する。
// DELETE /api/favorites/{recipeID}
func (h *FavoriteHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "recipeID")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
