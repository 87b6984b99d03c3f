package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type mockRecorder struct {
	statuses  []int
	latencies int
}

func (m *mockRecorder) RecordUpstreamStatus(service string, statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockRecorder) RecordContentLatency(time.Duration) { m.latencies++ }

// TestNewClient_BaseURL はプロジェクト設定からAPIのURLが組み立てられることを検証する。
func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "CDN",
			cfg:  Config{ProjectID: "abc123", Dataset: "production", UseCDN: true},
			want: "https://abc123.apicdn.sanity.io/v2024-01-01/data/query/production",
		},
		{
			name: "トークン指定時はCDNを使わない",
			cfg:  Config{ProjectID: "abc123", Dataset: "production", UseCDN: true, Token: "t", APIVersion: "v2023-05-03"},
			want: "https://abc123.api.sanity.io/v2023-05-03/data/query/production",
		},
		{
			name: "ホストのオーバーライド",
			cfg:  Config{Dataset: "staging", APIHost: "http://127.0.0.1:9999/"},
			want: "http://127.0.0.1:9999/v2024-01-01/data/query/staging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.cfg, nil, nil)
			if c.baseURL != tt.want {
				t.Errorf("baseURL = %q, want %q", c.baseURL, tt.want)
			}
		})
	}
}

// TestClient_Query_Success はクエリとパラメータが送られ、resultが返ることを検証する。
func TestClient_Query_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/data/query/production") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != `*[slug.current == $slug][0]` {
			t.Errorf("query = %q", got)
		}
		if got := r.URL.Query().Get("$slug"); got != `"pasta"` {
			t.Errorf("$slug = %q, want JSON-encoded string", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"ms":3,"query":"...","result":{"title":"Pasta"}}`))
	}))
	defer srv.Close()

	rec := &mockRecorder{}
	c := NewClient(Config{Dataset: "production", Token: "secret", APIHost: srv.URL}, srv.Client(), rec)

	result, err := c.Query(context.Background(), `*[slug.current == $slug][0]`, map[string]interface{}{"slug": "pasta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Get("title").String(); got != "Pasta" {
		t.Errorf("title = %q, want Pasta", got)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != 200 || rec.latencies != 1 {
		t.Errorf("recorder = %+v", rec)
	}
}

// TestClient_Query_ErrorResponse はCMSのエラー応答がQueryErrorになることを検証する。
func TestClient_Query_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"description":"expected ']' following expression","type":"queryParseError"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Dataset: "production", APIHost: srv.URL}, srv.Client(), nil)
	_, err := c.Query(context.Background(), `*[`, nil)

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %v", err)
	}
	if qe.StatusCode != http.StatusBadRequest || !strings.Contains(qe.Description, "following expression") {
		t.Errorf("QueryError = %+v", qe)
	}
}

// TestClient_Query_InvalidJSON は壊れたレスポンスがエラーになることを検証する。
func TestClient_Query_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":`))
	}))
	defer srv.Close()

	c := NewClient(Config{Dataset: "production", APIHost: srv.URL}, srv.Client(), nil)
	if _, err := c.Query(context.Background(), `*`, nil); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
