package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/mealbox/internal/model"
)

var favoriteColumns = []string{"id", "user_id", "recipe_id", "created_at", "expires_at"}

func TestPostgresFavoriteRepo_ListByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, 7)
	mock.ExpectQuery(regexp.QuoteMeta("(expires_at IS NULL OR expires_at > $2)")).
		WithArgs("user-1", now).
		WillReturnRows(sqlmock.NewRows(favoriteColumns).
			AddRow("fav-2", "user-1", "recipe-b", now, expires).
			AddRow("fav-1", "user-1", "recipe-a", now.Add(-time.Hour), nil))

	favs, err := NewPostgresFavoriteRepo(db).ListByUserID(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(favs) != 2 {
		t.Fatalf("len = %d, want 2", len(favs))
	}
	if favs[0].ExpiresAt == nil || !favs[0].ExpiresAt.Equal(expires) {
		t.Errorf("favs[0].ExpiresAt = %v, want %v", favs[0].ExpiresAt, expires)
	}
	if favs[1].ExpiresAt != nil {
		t.Errorf("favs[1].ExpiresAt = %v, want nil", favs[1].ExpiresAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 該当がない場合はnilではなく空スライスを返す
func TestPostgresFavoriteRepo_ListByUserID_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM favorites")).
		WillReturnRows(sqlmock.NewRows(favoriteColumns))

	favs, err := NewPostgresFavoriteRepo(db).ListByUserID(context.Background(), "user-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if favs == nil || len(favs) != 0 {
		t.Errorf("favs = %v, want empty non-nil slice", favs)
	}
}

func TestPostgresFavoriteRepo_CountByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM favorites")).
		WithArgs("user-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := NewPostgresFavoriteRepo(db).CountByUserID(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}

func TestPostgresFavoriteRepo_FindByUserAndRecipe_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND recipe_id = $2")).
		WithArgs("user-1", "recipe-x").
		WillReturnRows(sqlmock.NewRows(favoriteColumns))

	fav, err := NewPostgresFavoriteRepo(db).FindByUserAndRecipe(context.Background(), "user-1", "recipe-x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fav != nil {
		t.Errorf("expected nil, got %+v", fav)
	}
}

// 既存行と衝突した場合はDBが返したIDが書き戻される
func TestPostgresFavoriteRepo_Create_ReturnsExistingID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, 30)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id, recipe_id) DO UPDATE")).
		WithArgs("new-id", "user-1", "recipe-a", now, expires).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("old-id"))

	fav := &model.Favorite{ID: "new-id", UserID: "user-1", RecipeID: "recipe-a", CreatedAt: now, ExpiresAt: &expires}
	if err := NewPostgresFavoriteRepo(db).Create(context.Background(), fav); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fav.ID != "old-id" {
		t.Errorf("ID = %q, want old-id", fav.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 無期限のお気に入りはexpires_atにNULLを渡す
func TestPostgresFavoriteRepo_Create_Unbounded(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO favorites")).
		WithArgs("id-1", "user-1", "recipe-a", now, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-1"))

	fav := &model.Favorite{ID: "id-1", UserID: "user-1", RecipeID: "recipe-a", CreatedAt: now}
	if err := NewPostgresFavoriteRepo(db).Create(context.Background(), fav); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresFavoriteRepo_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "削除あり", affected: 1, want: true},
		{name: "対象なし", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock.New failed: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM favorites WHERE user_id = $1 AND recipe_id = $2")).
				WithArgs("user-1", "recipe-a").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := NewPostgresFavoriteRepo(db).Delete(context.Background(), "user-1", "recipe-a")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Delete = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresFavoriteRepo_DeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("WHERE expires_at IS NOT NULL AND expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := NewPostgresFavoriteRepo(db).DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 12 {
		t.Errorf("deleted = %d, want 12", n)
	}
}

func TestPostgresFavoriteRepo_DeleteExpired_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	driverErr := errors.New("lock timeout")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM favorites")).WillReturnError(driverErr)

	if _, err := NewPostgresFavoriteRepo(db).DeleteExpired(context.Background(), time.Now()); !errors.Is(err, driverErr) {
		t.Errorf("err = %v, want wrapped %v", err, driverErr)
	}
}
