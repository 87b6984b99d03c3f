package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/mealbox/internal/middleware"
	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/navigation"
	"github.com/hitoshi/mealbox/internal/session"
)

const (
	displayNameMaxLength = 50
	householdSizeMax     = 12
	dietaryPrefsMax      = 20
	dietaryPrefMaxLength = 40
)

// ProfileStore はプロフィールの取得と登録を行う。repository.ProfileRepositoryが満たす。
type ProfileStore interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	Upsert(ctx context.Context, profile *model.Profile) error
}

// ProfileHandler はプロフィール設定のHTTPハンドラー。
type ProfileHandler struct {
	profiles ProfileStore
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// profileRequest はプロフィール設定リクエストのボディ。
type profileRequest struct {
	DisplayName   string   `json:"display_name"`
	HouseholdSize int      `json:"household_size"`
	DietaryPrefs  []string `json:"dietary_prefs"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	UserID        string              `json:"user_id"`
	DisplayName   string              `json:"display_name"`
	HouseholdSize int                 `json:"household_size"`
	DietaryPrefs  []string            `json:"dietary_prefs"`
	ProfileStatus model.ProfileStatus `json:"profile_status"`
	Route         navigation.Route    `json:"route"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// GetProfile は現在のユーザーのプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	profile, err := h.profiles.FindByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if profile == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError())
		return
	}

	st := d.Session.State()
	writeJSON(w, http.StatusOK, toProfileResponse(profile, st.ProfileStatus, navigation.Resolve(st.NavigationInput())))
}

// PutProfile はプロフィールを登録または更新し、Session Storeにプロフィール有無を再判定させる。
// 登録が済めば表示すべき画面はメイン画面に移る。
// PUT /api/profile
func (h *ProfileHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	profile, err := req.toProfile(userID)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewProfileInvalidError(err.Error()))
		return
	}

	if err := h.profiles.Upsert(r.Context(), profile); err != nil {
		handleServiceError(w, err)
		return
	}

	status, err := d.Session.RefreshProfile(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNotSignedIn) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		handleServiceError(w, err)
		return
	}

	// プロフィール設定への誘導は不要になった
	if pending := d.Redirects.Pending(); pending != nil && pending.Route == navigation.RouteProfileSetup && status == model.ProfilePresent {
		d.Redirects.Acknowledge()
	}

	st := d.Session.State()
	writeJSON(w, http.StatusOK, toProfileResponse(profile, status, navigation.Resolve(st.NavigationInput())))
}

// toProfile は入力値を検証し、正規化したプロフィールを返す。
func (req profileRequest) toProfile(userID string) (*model.Profile, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("表示名を入力してください")
	}
	if utf8.RuneCountInString(name) > displayNameMaxLength {
		return nil, fmt.Errorf("表示名は%d文字以内で入力してください", displayNameMaxLength)
	}
	if req.HouseholdSize < 1 || req.HouseholdSize > householdSizeMax {
		return nil, fmt.Errorf("世帯人数は1〜%dの範囲で入力してください", householdSizeMax)
	}
	if len(req.DietaryPrefs) > dietaryPrefsMax {
		return nil, fmt.Errorf("食の好みは%d件まで登録できます", dietaryPrefsMax)
	}

	prefs := make([]string, 0, len(req.DietaryPrefs))
	for _, p := range req.DietaryPrefs {
		p = strings.TrimSpace(p)
		if p == "" || utf8.RuneCountInString(p) > dietaryPrefMaxLength {
			return nil, fmt.Errorf("食の好みは1〜%d文字で入力してください", dietaryPrefMaxLength)
		}
		prefs = append(prefs, p)
	}

	return &model.Profile{
		UserID:        userID,
		DisplayName:   name,
		HouseholdSize: req.HouseholdSize,
		DietaryPrefs:  prefs,
	}, nil
}

func toProfileResponse(p *model.Profile, status model.ProfileStatus, route navigation.Route) profileResponse {
	prefs := p.DietaryPrefs
	if prefs == nil {
		prefs = []string{}
	}
	return profileResponse{
		UserID:        p.UserID,
		DisplayName:   p.DisplayName,
		HouseholdSize: p.HouseholdSize,
		DietaryPrefs:  prefs,
		ProfileStatus: status,
		Route:         route,
		UpdatedAt:     p.UpdatedAt,
	}
}
