package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedStatus struct {
	service string
	status  int
}

type mockRecorder struct {
	statuses []recordedStatus
}

func (m *mockRecorder) RecordUpstreamStatus(service string, statusCode int) {
	m.statuses = append(m.statuses, recordedStatus{service, statusCode})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *mockRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	rec := &mockRecorder{}
	return NewClient(Config{URL: srv.URL + "/", AnonKey: "anon-key"}, rec), rec
}

// TestClient_GetUser_Success はユーザー取得時にapikeyとBearerトークンが送られることを検証する。
func TestClient_GetUser_Success(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("path = %q, want /auth/v1/user", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q, want anon-key", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("Authorization = %q, want Bearer token-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"user-1","email":"a@example.com","created_at":"2024-01-02T03:04:05Z"}`))
	})

	user, err := client.GetUser(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected non-nil user")
	}
	if user.ID != "user-1" || user.Email != "a@example.com" {
		t.Errorf("user = %+v", user)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != (recordedStatus{"identity", 200}) {
		t.Errorf("recorded statuses = %+v", rec.statuses)
	}
}

// TestClient_GetUser_DeletedUser は404が削除済みユーザー（nil, nil）として扱われることを検証する。
func TestClient_GetUser_DeletedUser(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"msg":"User not found"}`))
	})

	user, err := client.GetUser(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

// TestClient_GetUser_Unauthorized は401がHTTPErrorとして返ることを検証する。
func TestClient_GetUser_Unauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"msg":"invalid JWT"}`))
	})

	_, err := client.GetUser(context.Background(), "bad-token")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", httpErr.StatusCode)
	}
}

// TestClient_SignOut_TreatsInvalidTokenAsSignedOut は無効トークンでのサインアウトが成功扱いになることを検証する。
func TestClient_SignOut_TreatsInvalidTokenAsSignedOut(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"no content", http.StatusNoContent, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/auth/v1/logout" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
			})

			err := client.SignOut(context.Background(), "token-1")
			if (err != nil) != tt.wantErr {
				t.Errorf("SignOut() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestClient_Refresh_Success はリフレッシュで新しいセッションが返ることを検証する。
func TestClient_Refresh_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", r.URL.Query().Get("grant_type"))
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["refresh_token"] != "refresh-1" {
			t.Errorf("refresh_token = %q, want refresh-1", body["refresh_token"])
		}
		w.Write([]byte(`{"access_token":"access-2","refresh_token":"refresh-2","expires_at":1893456000,"user":{"id":"user-1"}}`))
	})

	session, err := client.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.AccessToken != "access-2" || session.RefreshToken != "refresh-2" {
		t.Errorf("session tokens = %q / %q", session.AccessToken, session.RefreshToken)
	}
	if session.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", session.UserID)
	}
	if session.ExpiresAt.Unix() != 1893456000 {
		t.Errorf("ExpiresAt = %v", session.ExpiresAt)
	}
}

// TestClient_Refresh_Rejected はリフレッシュ拒否がエラーになることを検証する。
func TestClient_Refresh_Rejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	if _, err := client.Refresh(context.Background(), "expired"); err == nil {
		t.Fatal("expected error for rejected refresh")
	}
}
