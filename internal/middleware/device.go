// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/mealbox/internal/device"
	"github.com/hitoshi/mealbox/internal/model"
)

const (
	// DeviceIDHeader はクライアントがデバイスIDを送るヘッダー。
	DeviceIDHeader = "X-Device-ID"
	// deviceCookieName はヘッダーを送れないクライアント向けのCookie名。
	deviceCookieName = "device_id"
	// deviceCookieMaxAge はデバイスCookieの有効期間（1年）。
	deviceCookieMaxAge = 365 * 24 * 60 * 60
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// deviceContextKey はリクエストコンテキストにデバイスを格納するためのキー。
	deviceContextKey = contextKey("device")
)

// DeviceProvider はデバイスIDからデバイスを取得する。
// device.Registryが満たす。
type DeviceProvider interface {
	GetOrCreate(id string) *device.Device
	NewID() string
}

// NewDeviceMiddleware はX-Device-IDヘッダーまたはdevice_id Cookieからデバイスを特定し、
// リクエストコンテキストに注入するミドルウェアを返す。
// IDがない、または形式が不正な場合は新しいIDを採番し、レスポンスのヘッダーとCookieで返す。
// サインイン済みのデバイスではユーザーIDもコンテキストに注入する。
func NewDeviceMiddleware(devices DeviceProvider, cookieSecure bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(DeviceIDHeader)
			if id == "" {
				if cookie, err := r.Cookie(deviceCookieName); err == nil {
					id = cookie.Value
				}
			}

			if !device.ValidID(id) {
				id = devices.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     deviceCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   deviceCookieMaxAge,
					HttpOnly: true,
					Secure:   cookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(DeviceIDHeader, id)

			d := devices.GetOrCreate(id)

			ctx := ContextWithDevice(r.Context(), d)
			userID := d.UserID()
			if userID != "" {
				ctx = ContextWithUserID(ctx, userID)
			}
			annotateRequest(ctx, id, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireUserMiddleware は検証済みユーザーがいるデバイスのみを通すミドルウェアを返す。
// NewDeviceMiddlewareの後に配置する。未サインインのリクエストには401を返す。
func NewRequireUserMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := DeviceFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			userID := d.UserID()
			if userID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			annotateRequest(ctx, d.ID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceFromContext はリクエストコンテキストからデバイスを取得する。
// デバイスミドルウェアを通過したリクエストでのみ有効。
func DeviceFromContext(ctx context.Context) (*device.Device, error) {
	d, ok := ctx.Value(deviceContextKey).(*device.Device)
	if !ok || d == nil {
		return nil, fmt.Errorf("device not found in context")
	}
	return d, nil
}

// ContextWithDevice はコンテキストにデバイスを注入する。
func ContextWithDevice(ctx context.Context, d *device.Device) context.Context {
	return context.WithValue(ctx, deviceContextKey, d)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
