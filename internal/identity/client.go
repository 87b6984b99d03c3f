// Package identity は外部IdP（GoTrue互換の認証バックエンド）のクライアントと、
// デバイスごとの認証セッション保持を提供する。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/mealbox/internal/model"
)

const defaultTimeout = 10 * time.Second

// Config はIdPクライアントの設定。
type Config struct {
	URL     string // 例: https://xxxx.supabase.co
	AnonKey string
	Timeout time.Duration

	// テスト用にオーバーライド可能なHTTPクライアント
	HTTPClient *http.Client
}

// HTTPError はIdPが2xx以外のステータスを返したことを表す。
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *HTTPError) Error() string {
	return fmt.Sprintf("identity backend returned status %d: %s", e.StatusCode, e.Body)
}

// StatusRecorder は外部サービスのステータスコードを記録する。
type StatusRecorder interface {
	RecordUpstreamStatus(service string, statusCode int)
}

// Client はIdPのREST APIを呼び出すクライアント。
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	recorder   StatusRecorder
}

// NewClient はClientを生成する。
func NewClient(cfg Config, recorder StatusRecorder) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
		recorder:   recorder,
	}
}

// userResponse は/auth/v1/userのレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *userResponse) toModel() *model.User {
	return &model.User{
		ID:        u.ID,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

// tokenResponse は/auth/v1/tokenのレスポンス。
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

// GetUser はアクセストークンに紐づくユーザーを取得する。
// ユーザーが削除済みの場合（404）はnil, nilを返す。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, &HTTPError{StatusCode: status, Body: string(body)}
	}

	var u userResponse
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if u.ID == "" {
		return nil, nil
	}
	return u.toModel(), nil
}

// SignOut はIdP側のセッションを無効化する。
// トークンが既に無効（401, 404）の場合もサインアウト済みとして扱う。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	body, status, err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusNotFound:
		return nil
	default:
		return &HTTPError{StatusCode: status, Body: string(body)}
	}
}

// Refresh はリフレッシュトークンで新しいセッションを取得する。
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	if status != http.StatusOK {
		return nil, &HTTPError{StatusCode: status, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in refresh response")
	}

	session := &model.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.User != nil {
		session.UserID = tr.User.ID
	}
	switch {
	case tr.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		session.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return session, nil
}

// do はIdPにリクエストを送り、レスポンスボディとステータスコードを返す。
func (c *Client) do(ctx context.Context, method, path, accessToken string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordUpstreamStatus("identity", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
