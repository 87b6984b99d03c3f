package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/mealbox/internal/identity"
	"github.com/hitoshi/mealbox/internal/model"
)

// AuthHandler はデバイスの認証セッションを操作するHTTPハンドラー。
// サインイン自体はクライアントがIdPと直接行い、得たトークンをここに渡す。
type AuthHandler struct{}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// setSessionRequest はセッション登録リクエストのボディ。
type setSessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// meResponse は現在のユーザー情報のAPIレスポンス。
type meResponse struct {
	User          *model.User         `json:"user"`
	ProfileStatus model.ProfileStatus `json:"profile_status"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
}

// SetSession はIdPから得たトークンをデバイスに保持させ、サインインを通知する。
// 検証に失敗した場合、デバイスはサインアウト状態に戻り401を返す。
// POST /auth/session
func (h *AuthHandler) SetSession(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	var req setSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if _, err := d.Auth.SetSession(r.Context(), req.AccessToken, req.RefreshToken); err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewSessionInvalidError())
			return
		}
		handleServiceError(w, err)
		return
	}

	if d.UserID() == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewSessionInvalidError())
		return
	}

	writeJSON(w, http.StatusOK, d.Snapshot())
}

// Refresh はリフレッシュトークンでセッションを更新する。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	if _, err := d.Auth.Refresh(r.Context()); err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		slog.Warn("token refresh failed",
			slog.String("device_id", d.ID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewSessionInvalidError())
		return
	}

	writeJSON(w, http.StatusOK, d.Snapshot())
}

// Logout はデバイスをサインアウトさせる。
// IdP側の無効化に失敗してもローカルの状態は破棄されるため、常に204を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	if err := d.Session.SignOut(r.Context()); err != nil {
		slog.Warn("identity sign out failed",
			slog.String("device_id", d.ID),
			slog.String("error", err.Error()),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は検証済みのユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	st := d.Session.State()
	if st.Session == nil || st.User == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	resp := meResponse{
		User:          st.User,
		ProfileStatus: st.ProfileStatus,
	}
	if !st.Session.ExpiresAt.IsZero() {
		expiresAt := st.Session.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}
