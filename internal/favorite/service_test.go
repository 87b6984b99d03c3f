package favorite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/mealbox/internal/model"
)

// --- モック定義 ---

type mockFavoriteRepo struct {
	listByUserIDFn        func(ctx context.Context, userID string, now time.Time) ([]*model.Favorite, error)
	countByUserIDFn       func(ctx context.Context, userID string, now time.Time) (int, error)
	findByUserAndRecipeFn func(ctx context.Context, userID, recipeID string) (*model.Favorite, error)
	createFn              func(ctx context.Context, fav *model.Favorite) error
	deleteFn              func(ctx context.Context, userID, recipeID string) (bool, error)
	deleteExpiredFn       func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockFavoriteRepo) ListByUserID(ctx context.Context, userID string, now time.Time) ([]*model.Favorite, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID, now)
	}
	return []*model.Favorite{}, nil
}

func (m *mockFavoriteRepo) CountByUserID(ctx context.Context, userID string, now time.Time) (int, error) {
	if m.countByUserIDFn != nil {
		return m.countByUserIDFn(ctx, userID, now)
	}
	return 0, nil
}

func (m *mockFavoriteRepo) FindByUserAndRecipe(ctx context.Context, userID, recipeID string) (*model.Favorite, error) {
	if m.findByUserAndRecipeFn != nil {
		return m.findByUserAndRecipeFn(ctx, userID, recipeID)
	}
	return nil, nil
}

func (m *mockFavoriteRepo) Create(ctx context.Context, fav *model.Favorite) error {
	if m.createFn != nil {
		return m.createFn(ctx, fav)
	}
	return nil
}

func (m *mockFavoriteRepo) Delete(ctx context.Context, userID, recipeID string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, recipeID)
	}
	return true, nil
}

func (m *mockFavoriteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, now)
	}
	return 0, nil
}

type mockRecipeLookup struct {
	recipeByIDFn func(ctx context.Context, id string) (*model.Recipe, error)
}

func (m *mockRecipeLookup) RecipeByID(ctx context.Context, id string) (*model.Recipe, error) {
	if m.recipeByIDFn != nil {
		return m.recipeByIDFn(ctx, id)
	}
	return &model.Recipe{ID: id, Slug: "slug-" + id}, nil
}

// --- ヘルパー ---

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo *mockFavoriteRepo, recipes *mockRecipeLookup) *Service {
	if recipes == nil {
		recipes = &mockRecipeLookup{}
	}
	s := NewService(repo, recipes)
	s.now = func() time.Time { return fixedNow }
	return s
}

func intPtr(n int) *int { return &n }

func features(storage string, canFavorite bool, maxFavorites *int) model.FeatureSet {
	return model.FeatureSet{
		StorageDuration:  storage,
		CanSaveFavorites: canFavorite,
		MaxFavorites:     maxFavorites,
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

// 7日プランではexpires_atが7日後になる
func TestAdd_SetsExpiryFromStorageDuration(t *testing.T) {
	var created *model.Favorite
	repo := &mockFavoriteRepo{
		createFn: func(ctx context.Context, fav *model.Favorite) error {
			created = fav
			return nil
		},
	}
	s := newTestService(repo, nil)

	fav, err := s.Add(context.Background(), "user-1", "recipe-1", features("7", true, intPtr(5)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("Create was not called")
	}
	if fav.ID == "" {
		t.Error("favorite ID should be generated")
	}
	want := fixedNow.AddDate(0, 0, 7)
	if fav.ExpiresAt == nil || !fav.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", fav.ExpiresAt, want)
	}
}

// 無制限プランではexpires_atを設定しない
func TestAdd_UnboundedStorageHasNoExpiry(t *testing.T) {
	s := newTestService(&mockFavoriteRepo{}, nil)

	fav, err := s.Add(context.Background(), "user-1", "recipe-1", features(model.UnboundedSentinel, true, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fav.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", fav.ExpiresAt)
	}
}

func TestAdd_NotAllowed(t *testing.T) {
	repo := &mockFavoriteRepo{
		createFn: func(ctx context.Context, fav *model.Favorite) error {
			t.Error("Create should not be called")
			return nil
		},
	}
	s := newTestService(repo, nil)

	_, err := s.Add(context.Background(), "user-1", "recipe-1", features("7", false, intPtr(0)))
	assertAPIErrorCode(t, err, "FAVORITES_NOT_ALLOWED")
}

// 上限に達している場合はFAVORITES_LIMITを返す
func TestAdd_LimitReached(t *testing.T) {
	repo := &mockFavoriteRepo{
		countByUserIDFn: func(ctx context.Context, userID string, now time.Time) (int, error) {
			return 5, nil
		},
	}
	s := newTestService(repo, nil)

	_, err := s.Add(context.Background(), "user-1", "recipe-6", features("7", true, intPtr(5)))
	assertAPIErrorCode(t, err, "FAVORITES_LIMIT")
}

// 上限がnilの場合は件数を確認しない
func TestAdd_UnboundedLimitSkipsCount(t *testing.T) {
	repo := &mockFavoriteRepo{
		countByUserIDFn: func(ctx context.Context, userID string, now time.Time) (int, error) {
			t.Error("CountByUserID should not be called")
			return 0, nil
		},
	}
	s := newTestService(repo, nil)

	if _, err := s.Add(context.Background(), "user-1", "recipe-1", features("30", true, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// 有効な既存登録がある場合は上限に関係なくそれを返す
func TestAdd_AlreadyFavorited(t *testing.T) {
	expires := fixedNow.Add(24 * time.Hour)
	existing := &model.Favorite{ID: "fav-1", UserID: "user-1", RecipeID: "recipe-1", ExpiresAt: &expires}
	repo := &mockFavoriteRepo{
		findByUserAndRecipeFn: func(ctx context.Context, userID, recipeID string) (*model.Favorite, error) {
			return existing, nil
		},
		countByUserIDFn: func(ctx context.Context, userID string, now time.Time) (int, error) {
			return 5, nil
		},
		createFn: func(ctx context.Context, fav *model.Favorite) error {
			t.Error("Create should not be called")
			return nil
		},
	}
	s := newTestService(repo, nil)

	fav, err := s.Add(context.Background(), "user-1", "recipe-1", features("7", true, intPtr(5)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fav.ID != "fav-1" {
		t.Errorf("ID = %q, want fav-1", fav.ID)
	}
}

// 期限切れの既存登録は新規登録として扱う
func TestAdd_ExpiredFavoriteIsRenewed(t *testing.T) {
	expired := fixedNow.Add(-time.Hour)
	createCalled := false
	repo := &mockFavoriteRepo{
		findByUserAndRecipeFn: func(ctx context.Context, userID, recipeID string) (*model.Favorite, error) {
			return &model.Favorite{ID: "fav-old", ExpiresAt: &expired}, nil
		},
		createFn: func(ctx context.Context, fav *model.Favorite) error {
			createCalled = true
			return nil
		},
	}
	s := newTestService(repo, nil)

	if _, err := s.Add(context.Background(), "user-1", "recipe-1", features("30", true, intPtr(5))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !createCalled {
		t.Error("expected Create to be called for expired favorite")
	}
}

func TestAdd_RecipeNotFound(t *testing.T) {
	recipes := &mockRecipeLookup{
		recipeByIDFn: func(ctx context.Context, id string) (*model.Recipe, error) {
			return nil, nil
		},
	}
	s := newTestService(&mockFavoriteRepo{}, recipes)

	_, err := s.Add(context.Background(), "user-1", "missing", features("7", true, intPtr(5)))
	assertAPIErrorCode(t, err, "RECIPE_NOT_FOUND")
}

// CMSの障害はそのまま呼び出し元へ返す
func TestAdd_ContentUnavailable(t *testing.T) {
	recipes := &mockRecipeLookup{
		recipeByIDFn: func(ctx context.Context, id string) (*model.Recipe, error) {
			return nil, model.NewContentUnavailableError()
		},
	}
	s := newTestService(&mockFavoriteRepo{}, recipes)

	_, err := s.Add(context.Background(), "user-1", "recipe-1", features("7", true, intPtr(5)))
	assertAPIErrorCode(t, err, "CONTENT_UNAVAILABLE")
}

func TestAdd_EmptyRecipeID(t *testing.T) {
	s := newTestService(&mockFavoriteRepo{}, nil)

	_, err := s.Add(context.Background(), "user-1", "  ", features("7", true, intPtr(5)))
	assertAPIErrorCode(t, err, "INVALID_REQUEST")
}

func TestAdd_RepositoryError(t *testing.T) {
	repoErr := errors.New("db down")
	repo := &mockFavoriteRepo{
		createFn: func(ctx context.Context, fav *model.Favorite) error {
			return repoErr
		},
	}
	s := newTestService(repo, nil)

	_, err := s.Add(context.Background(), "user-1", "recipe-1", features("7", true, intPtr(5)))
	if !errors.Is(err, repoErr) {
		t.Errorf("err = %v, want wrapped %v", err, repoErr)
	}
}

func TestList_PassesCurrentTime(t *testing.T) {
	var gotNow time.Time
	repo := &mockFavoriteRepo{
		listByUserIDFn: func(ctx context.Context, userID string, now time.Time) ([]*model.Favorite, error) {
			gotNow = now
			return []*model.Favorite{{ID: "fav-1"}}, nil
		},
	}
	s := newTestService(repo, nil)

	favs, err := s.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(favs) != 1 {
		t.Errorf("len = %d, want 1", len(favs))
	}
	if !gotNow.Equal(fixedNow) {
		t.Errorf("now = %v, want %v", gotNow, fixedNow)
	}
}

func TestRemove_NotFound(t *testing.T) {
	repo := &mockFavoriteRepo{
		deleteFn: func(ctx context.Context, userID, recipeID string) (bool, error) {
			return false, nil
		},
	}
	s := newTestService(repo, nil)

	err := s.Remove(context.Background(), "user-1", "recipe-1")
	assertAPIErrorCode(t, err, "FAVORITE_NOT_FOUND")
}

func TestRemove_Success(t *testing.T) {
	s := newTestService(&mockFavoriteRepo{}, nil)

	if err := s.Remove(context.Background(), "user-1", "recipe-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
