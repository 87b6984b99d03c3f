package model

import "time"

// User はIdPが管理する認証ユーザーを表す。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session はIdPが発行した認証セッションのローカルミラー。
// サインインで作成され、トークンリフレッシュで置き換えられ、サインアウトまたは無効化で破棄される。
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	UserID       string    `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired はセッションの有効期限が切れているかを返す。
// ExpiresAtがゼロ値の場合は期限なしとして扱う。
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// Profile は認証IDとは別に管理されるアプリ固有のユーザープロフィール。
// 存在しない場合はプロフィール設定フローへ誘導する。
type Profile struct {
	UserID        string
	DisplayName   string
	HouseholdSize int
	DietaryPrefs  []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProfileStatus はプロフィールの存在状態を表す3値の列挙型。
type ProfileStatus string

const (
	// ProfileUnknown は検索が未完了であることを示す。
	ProfileUnknown ProfileStatus = "unknown"
	// ProfilePresent はプロフィールが存在することを示す。
	ProfilePresent ProfileStatus = "present"
	// ProfileMissing はプロフィールが存在しないことを示す。
	ProfileMissing ProfileStatus = "missing"
)
