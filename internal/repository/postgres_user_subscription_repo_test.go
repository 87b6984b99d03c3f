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

var userSubscriptionColumns = []string{"user_id", "tier_slug", "status", "current_period_end", "created_at", "updated_at"}

func TestPostgresUserSubscriptionRepo_FindActiveByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := now.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_subscriptions WHERE user_id = $1 AND status = $2")).
		WithArgs("user-1", model.SubscriptionStatusActive).
		WillReturnRows(sqlmock.NewRows(userSubscriptionColumns).
			AddRow("user-1", "premium", "active", periodEnd, now, now))

	sub, err := NewPostgresUserSubscriptionRepo(db).FindActiveByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub == nil || sub.TierSlug != "premium" {
		t.Fatalf("sub = %+v, want tier premium", sub)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(periodEnd) {
		t.Errorf("CurrentPeriodEnd = %v, want %v", sub.CurrentPeriodEnd, periodEnd)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// current_period_endがNULLの場合はnilポインタになる
func TestPostgresUserSubscriptionRepo_FindActiveByUserID_NullPeriodEnd(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_subscriptions")).
		WillReturnRows(sqlmock.NewRows(userSubscriptionColumns).
			AddRow("user-1", "basic", "active", nil, now, now))

	sub, err := NewPostgresUserSubscriptionRepo(db).FindActiveByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.CurrentPeriodEnd != nil {
		t.Errorf("CurrentPeriodEnd = %v, want nil", sub.CurrentPeriodEnd)
	}
}

func TestPostgresUserSubscriptionRepo_FindActiveByUserID_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_subscriptions")).
		WillReturnRows(sqlmock.NewRows(userSubscriptionColumns))

	sub, err := NewPostgresUserSubscriptionRepo(db).FindActiveByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub != nil {
		t.Errorf("expected nil, got %+v", sub)
	}
}

func TestPostgresUserSubscriptionRepo_FindActiveByUserID_DriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	driverErr := errors.New("timeout")
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_subscriptions")).WillReturnError(driverErr)

	if _, err := NewPostgresUserSubscriptionRepo(db).FindActiveByUserID(context.Background(), "user-1"); !errors.Is(err, driverErr) {
		t.Errorf("err = %v, want wrapped %v", err, driverErr)
	}
}
