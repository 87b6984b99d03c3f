// Package content はヘッドレスCMS（GROQクエリAPI）からカテゴリ・レシピ・プラン・
// オンボーディング設定を取得する。
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultAPIVersion = "2024-01-01"
	maxResponseSize   = 5 * 1024 * 1024
)

// Config はCMSクライアントの設定。
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string // 例: 2024-01-01
	Token      string // 非公開データセット用。空の場合は匿名で読む
	UseCDN     bool

	// テスト用にオーバーライド可能なAPIホスト（例: http://127.0.0.1:1234）
	APIHost string
}

// Recorder はCMSリクエストの計測値を記録する。
type Recorder interface {
	RecordUpstreamStatus(service string, statusCode int)
	RecordContentLatency(duration time.Duration)
}

// Client はGROQクエリをHTTPで実行するクライアント。
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	recorder   Recorder
}

// NewClient はClientを生成する。
func NewClient(cfg Config, httpClient *http.Client, recorder Recorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	host := strings.TrimRight(cfg.APIHost, "/")
	if host == "" {
		sub := "api"
		if cfg.UseCDN && cfg.Token == "" {
			sub = "apicdn"
		}
		host = fmt.Sprintf("https://%s.%s.sanity.io", cfg.ProjectID, sub)
	}

	return &Client{
		baseURL:    fmt.Sprintf("%s/v%s/data/query/%s", host, strings.TrimPrefix(version, "v"), cfg.Dataset),
		token:      cfg.Token,
		httpClient: httpClient,
		recorder:   recorder,
	}
}

// QueryError はCMSがクエリを拒否したことを表す。
type QueryError struct {
	StatusCode  int
	Description string
}

// Error はerrorインターフェースを実装する。
func (e *QueryError) Error() string {
	return fmt.Sprintf("cms query failed with status %d: %s", e.StatusCode, e.Description)
}

// Query はGROQクエリを実行し、レスポンスのresultを返す。
// paramsの値はJSONエンコードされ、$名前のクエリパラメータとして送られる。
func (c *Client) Query(ctx context.Context, query string, params map[string]interface{}) (gjson.Result, error) {
	reqURL, err := c.buildURL(query, params)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create cms request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.recorder != nil {
		c.recorder.RecordContentLatency(time.Since(start))
	}
	if err != nil {
		return gjson.Result{}, fmt.Errorf("cms request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordUpstreamStatus("cms", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read cms response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		desc := gjson.GetBytes(body, "error.description").String()
		if desc == "" {
			desc = strings.TrimSpace(string(body))
		}
		return gjson.Result{}, &QueryError{StatusCode: resp.StatusCode, Description: desc}
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid json in cms response")
	}
	return gjson.GetBytes(body, "result"), nil
}

// buildURL はクエリとパラメータからリクエストURLを組み立てる。
// キャッシュキーとしても使うため、パラメータは名前順に並べる。
func (c *Client) buildURL(query string, params map[string]interface{}) (string, error) {
	values := url.Values{}
	values.Set("query", query)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		encoded, err := json.Marshal(params[name])
		if err != nil {
			return "", fmt.Errorf("failed to encode query param %s: %w", name, err)
		}
		values.Set("$"+name, string(encoded))
	}
	return c.baseURL + "?" + values.Encode(), nil
}
