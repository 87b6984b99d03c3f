// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, cart, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeSessionInvalid      = "SESSION_INVALID"
	ErrCodeInvalidCartItem     = "INVALID_CART_ITEM"
	ErrCodeCartItemNotFound    = "CART_ITEM_NOT_FOUND"
	ErrCodeInvalidImageURL     = "INVALID_IMAGE_URL"
	ErrCodeProfileInvalid      = "PROFILE_INVALID"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeFavoritesNotAllowed = "FAVORITES_NOT_ALLOWED"
	ErrCodeFavoritesLimit      = "FAVORITES_LIMIT"
	ErrCodeFavoriteNotFound    = "FAVORITE_NOT_FOUND"
	ErrCodeRecipeNotFound      = "RECIPE_NOT_FOUND"
	ErrCodeRecipeLocked        = "RECIPE_LOCKED"
	ErrCodeCategoryNotFound    = "CATEGORY_NOT_FOUND"
	ErrCodeContentUnavailable  = "CONTENT_UNAVAILABLE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewSessionInvalidError はIdPによるセッション検証失敗エラーを生成する。
func NewSessionInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionInvalid,
		Message:  "セッションが無効です。",
		Category: "auth",
		Action:   "もう一度サインインしてください。",
	}
}

// NewInvalidCartItemError はカート明細の入力エラーを生成する。
func NewInvalidCartItemError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCartItem,
		Message:  fmt.Sprintf("カートに追加できない商品です: %s", reason),
		Category: "validation",
		Action:   "商品ID、価格、数量を確認してください。",
	}
}

// NewCartItemNotFoundError はカート明細が見つからない場合のエラーを生成する。
func NewCartItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeCartItemNotFound,
		Message:  fmt.Sprintf("カートに指定された商品がありません: %s", itemID),
		Category: "cart",
		Action:   "カートの内容を再読み込みしてください。",
	}
}

// NewInvalidImageURLError は画像参照URLが不正な場合のエラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("画像URLが不正です: %s", reason),
		Category: "validation",
		Action:   "https:// で始まる公開URLを指定してください。",
	}
}

// NewProfileInvalidError はプロフィール入力エラーを生成する。
func NewProfileInvalidError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileInvalid,
		Message:  fmt.Sprintf("プロフィールの内容が不正です: %s", reason),
		Category: "validation",
		Action:   "表示名と世帯人数（1〜12人）を入力してください。",
	}
}

// NewProfileNotFoundError はプロフィール未設定のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが設定されていません。",
		Category: "validation",
		Action:   "プロフィール設定画面で登録してください。",
	}
}

// NewFavoritesNotAllowedError は現在のプランでお気に入りが使えない場合のエラーを生成する。
func NewFavoritesNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeFavoritesNotAllowed,
		Message:  "現在のプランではお気に入りを保存できません。",
		Category: "subscription",
		Action:   "お気に入りが使えるプランへのアップグレードをご検討ください。",
	}
}

// NewFavoritesLimitError はお気に入り上限エラーを生成する。
func NewFavoritesLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeFavoritesLimit,
		Message:  fmt.Sprintf("お気に入りが上限（%d件）に達しています。", limit),
		Category: "subscription",
		Action:   "不要なお気に入りを削除するか、プランをアップグレードしてください。",
	}
}

// NewFavoriteNotFoundError はお気に入りが見つからない場合のエラーを生成する。
func NewFavoriteNotFoundError(recipeID string) *APIError {
	return &APIError{
		Code:     ErrCodeFavoriteNotFound,
		Message:  fmt.Sprintf("お気に入りに登録されていません: %s", recipeID),
		Category: "subscription",
		Action:   "お気に入り一覧を確認してください。",
	}
}

// NewRecipeNotFoundError はレシピ未検出エラーを生成する。
func NewRecipeNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipeNotFound,
		Message:  fmt.Sprintf("指定されたレシピが見つかりません: %s", slug),
		Category: "content",
		Action:   "レシピ一覧から選択し直してください。",
	}
}

// NewRecipeLockedError はプランの上限を超えたレシピへのアクセスエラーを生成する。
func NewRecipeLockedError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipeLocked,
		Message:  fmt.Sprintf("このレシピは現在のプランでは閲覧できません: %s", slug),
		Category: "subscription",
		Action:   "すべてのレシピが見られるプランへのアップグレードをご検討ください。",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", slug),
		Category: "content",
		Action:   "カテゴリ一覧から選択し直してください。",
	}
}

// NewContentUnavailableError はCMSからの取得失敗エラーを生成する。
func NewContentUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeContentUnavailable,
		Message:  "コンテンツを取得できませんでした。",
		Category: "content",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
