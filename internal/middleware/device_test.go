package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/mealbox/internal/device"
	"github.com/hitoshi/mealbox/internal/model"
)

// stubBackend は常に同じユーザーを返すIdP。
type stubBackend struct{}

func (stubBackend) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	return &model.User{ID: "user-mw"}, nil
}
func (stubBackend) SignOut(ctx context.Context, accessToken string) error { return nil }
func (stubBackend) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	return nil, nil
}

type stubProfiles struct{}

func (stubProfiles) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{UserID: userID}, nil
}

// stubSubscriptions は購読なしを返す。
type stubSubscriptions struct{}

func (stubSubscriptions) FindActiveByUserID(ctx context.Context, userID string) (*model.UserSubscription, error) {
	return nil, nil
}

// fakeDevices はdevice.Newで生成したデバイスを保持するDeviceProvider。
type fakeDevices struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	nextID  string
}

func newFakeDevices(t *testing.T) *fakeDevices {
	f := &fakeDevices{
		devices: make(map[string]*device.Device),
		nextID:  "7b0e2f4a-9c1d-4e55-8a3b-2f6d1c0e9a77",
	}
	t.Cleanup(func() {
		for _, d := range f.devices {
			d.Close()
		}
	})
	return f
}

func (f *fakeDevices) NewID() string { return f.nextID }

func (f *fakeDevices) GetOrCreate(id string) *device.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[id]; ok {
		return d
	}
	d := device.New(id, device.Deps{
		Identity:      stubBackend{},
		Profiles:      stubProfiles{},
		Subscriptions: stubSubscriptions{},
	})
	d.Start()
	f.devices[id] = d
	return d
}

func signIn(t *testing.T, d *device.Device) {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-mw",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := d.Auth.SetSession(context.Background(), token, ""); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
}

const knownDeviceID = "3c9a1f0e-2b7d-4c6e-9f12-5a8b7c6d5e4f"

// ヘッダーのデバイスIDでデバイスが特定される
func TestDeviceMiddleware_UsesHeader(t *testing.T) {
	devices := newFakeDevices(t)

	var captured *device.Device
	handler := NewDeviceMiddleware(devices, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = DeviceFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set(DeviceIDHeader, knownDeviceID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured == nil || captured.ID != knownDeviceID {
		t.Fatalf("device = %v, want %s", captured, knownDeviceID)
	}
	if got := w.Header().Get(DeviceIDHeader); got != knownDeviceID {
		t.Errorf("response %s = %q, want %q", DeviceIDHeader, got, knownDeviceID)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("cookie should not be issued for a known device id")
	}
}

// ヘッダーがない場合はCookieを使う
func TestDeviceMiddleware_FallsBackToCookie(t *testing.T) {
	devices := newFakeDevices(t)

	var captured *device.Device
	handler := NewDeviceMiddleware(devices, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = DeviceFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.AddCookie(&http.Cookie{Name: "device_id", Value: knownDeviceID})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured == nil || captured.ID != knownDeviceID {
		t.Errorf("device = %v, want %s", captured, knownDeviceID)
	}
}

// IDがない、または不正な場合は新しいIDを採番してCookieで返す
func TestDeviceMiddleware_IssuesNewID(t *testing.T) {
	for _, id := range []string{"", "not-a-uuid"} {
		devices := newFakeDevices(t)
		handler := NewDeviceMiddleware(devices, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if id != "" {
			req.Header.Set(DeviceIDHeader, id)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		cookies := w.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Value != devices.nextID {
			t.Fatalf("id %q: cookies = %v, want device_id=%s", id, cookies, devices.nextID)
		}
		if !cookies[0].HttpOnly || !cookies[0].Secure {
			t.Errorf("id %q: cookie should be HttpOnly and Secure", id)
		}
		if got := w.Header().Get(DeviceIDHeader); got != devices.nextID {
			t.Errorf("id %q: header = %q, want %q", id, got, devices.nextID)
		}
	}
}

// 未サインインのデバイスは401になる
func TestRequireUserMiddleware_NoUser_Returns401(t *testing.T) {
	devices := newFakeDevices(t)
	handlerCalled := false
	handler := NewDeviceMiddleware(devices, false)(NewRequireUserMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(DeviceIDHeader, knownDeviceID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if handlerCalled {
		t.Error("handler should not be called")
	}
}

// デバイスミドルウェアを通っていないリクエストも401になる
func TestRequireUserMiddleware_NoDevice_Returns401(t *testing.T) {
	handler := NewRequireUserMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// サインイン済みのデバイスではユーザーIDがコンテキストに注入される
func TestRequireUserMiddleware_SignedIn_InjectsUserID(t *testing.T) {
	devices := newFakeDevices(t)
	signIn(t, devices.GetOrCreate(knownDeviceID))

	var userID string
	handler := NewDeviceMiddleware(devices, false)(NewRequireUserMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(DeviceIDHeader, knownDeviceID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if userID != "user-mw" {
		t.Errorf("userID = %q, want user-mw", userID)
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestDeviceFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := DeviceFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}
