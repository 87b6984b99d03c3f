// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mealbox/internal/device"
	"github.com/hitoshi/mealbox/internal/middleware"
	"github.com/hitoshi/mealbox/internal/model"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 64 * 1024

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをJSONとして解析する。
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// deviceFromRequest はリクエストのデバイスを取得する。
// デバイスミドルウェアを通っていない場合は401を書き込み、falseを返す。
func deviceFromRequest(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	d, err := middleware.DeviceFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return d, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeSessionInvalid:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidCartItem,
		model.ErrCodeInvalidImageURL, model.ErrCodeProfileInvalid:
		return http.StatusBadRequest
	case model.ErrCodeFavoritesNotAllowed, model.ErrCodeRecipeLocked:
		return http.StatusForbidden
	case model.ErrCodeFavoritesLimit:
		return http.StatusConflict
	case model.ErrCodeCartItemNotFound, model.ErrCodeFavoriteNotFound, model.ErrCodeProfileNotFound,
		model.ErrCodeRecipeNotFound, model.ErrCodeCategoryNotFound:
		return http.StatusNotFound
	case model.ErrCodeContentUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
