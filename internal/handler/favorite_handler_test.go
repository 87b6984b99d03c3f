package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hitoshi/mealbox/internal/model"
)

func TestFavoriteHandler_AddFavorite_Created(t *testing.T) {
	env := newTestEnv(t)
	var gotUser, gotRecipe string
	var gotFeatures model.FeatureSet
	env.favorites.addFn = func(ctx context.Context, userID, recipeID string, features model.FeatureSet) (*model.Favorite, error) {
		gotUser, gotRecipe, gotFeatures = userID, recipeID, features
		return &model.Favorite{ID: "fav-1", UserID: userID, RecipeID: recipeID}, nil
	}
	deviceID := env.signedInDevice(t, "user-1", true)

	w := env.do(t, http.MethodPost, "/api/favorites", deviceID, `{"recipe_id":"recipe-1"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}
	if gotUser != "user-1" || gotRecipe != "recipe-1" {
		t.Errorf("Add called with (%q, %q)", gotUser, gotRecipe)
	}
	if !gotFeatures.CanSaveFavorites {
		t.Error("default features should allow favorites")
	}
	var fav model.Favorite
	decodeBody(t, w, &fav)
	if fav.ID != "fav-1" {
		t.Errorf("favorite id = %q, want fav-1", fav.ID)
	}
}

func TestFavoriteHandler_AddFavorite_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"プランで不可", model.NewFavoritesNotAllowedError(), http.StatusForbidden, model.ErrCodeFavoritesNotAllowed},
		{"上限超過", model.NewFavoritesLimitError(5), http.StatusConflict, model.ErrCodeFavoritesLimit},
		{"レシピなし", model.NewRecipeNotFoundError("recipe-x"), http.StatusNotFound, model.ErrCodeRecipeNotFound},
		{"DB障害", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.favorites.addFn = func(ctx context.Context, userID, recipeID string, features model.FeatureSet) (*model.Favorite, error) {
				return nil, tt.err
			}
			deviceID := env.signedInDevice(t, "user-1", true)

			w := env.do(t, http.MethodPost, "/api/favorites", deviceID, `{"recipe_id":"recipe-x"}`)
			assertErrorCode(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestFavoriteHandler_AddFavorite_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	deviceID := env.signedInDevice(t, "user-1", true)

	w := env.do(t, http.MethodPost, "/api/favorites", deviceID, `[`)

	assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}

func TestFavoriteHandler_ListFavorites(t *testing.T) {
	env := newTestEnv(t)
	env.favorites.listFn = func(ctx context.Context, userID string) ([]*model.Favorite, error) {
		return []*model.Favorite{{ID: "f1", UserID: userID, RecipeID: "r1"}}, nil
	}
	deviceID := env.signedInDevice(t, "user-1", true)

	w := env.do(t, http.MethodGet, "/api/favorites", deviceID, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var favs []model.Favorite
	decodeBody(t, w, &favs)
	if len(favs) != 1 || favs[0].UserID != "user-1" {
		t.Errorf("favorites = %+v", favs)
	}
}

func TestFavoriteHandler_RemoveFavorite(t *testing.T) {
	env := newTestEnv(t)
	var gotRecipe string
	env.favorites.removeFn = func(ctx context.Context, userID, recipeID string) error {
		gotRecipe = recipeID
		if recipeID == "missing" {
			return model.NewFavoriteNotFoundError(recipeID)
		}
		return nil
	}
	deviceID := env.signedInDevice(t, "user-1", true)

	w := env.do(t, http.MethodDelete, "/api/favorites/recipe-1", deviceID, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if gotRecipe != "recipe-1" {
		t.Errorf("recipeID = %q, want recipe-1", gotRecipe)
	}

	w = env.do(t, http.MethodDelete, "/api/favorites/missing", deviceID, "")
	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeFavoriteNotFound)
}
