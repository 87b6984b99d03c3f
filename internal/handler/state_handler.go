package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
	streamPongWait     = 2 * streamPingInterval
)

// StateHandler はデバイス状態の取得とプッシュ配信を行うHTTPハンドラー。
type StateHandler struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// NewStateHandler はStateHandlerを生成する。
// WebSocketの接続元はOriginヘッダーなし（ネイティブアプリ）か、allowedOriginのみ許可する。
func NewStateHandler(allowedOrigin string) *StateHandler {
	return &StateHandler{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		pingInterval: streamPingInterval,
	}
}

// GetState はセッション状態、表示すべき画面、保留中のリダイレクト、カート、機能セットを返す。
// GET /api/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Snapshot())
}

// AcknowledgeRedirect はクライアントが遷移を完了した保留中のリダイレクトを消す。
// DELETE /api/state/redirect
func (h *StateHandler) AcknowledgeRedirect(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	d.Redirects.Acknowledge()
	w.WriteHeader(http.StatusNoContent)
}

// Entitlements は現在の機能セットを返す。
// GET /api/entitlements
func (h *StateHandler) Entitlements(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Entitlements.Features())
}

// Stream はWebSocketでデバイス状態を配信する。
// 接続直後に現在の状態を送り、以降はいずれかのストアが変化するたびに送る。
// 変化が連続した場合は最新の状態だけを送る。
// GET /api/state/stream
func (h *StateHandler) Stream(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		slog.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	changed := make(chan struct{}, 1)
	unsubscribe := d.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// クライアントからのメッセージは読み捨て、切断の検出とpongの受信だけに使う
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := slog.With(slog.String("device_id", d.ID))
	logger.Debug("state stream opened")
	defer logger.Debug("state stream closed")

	if err := writeSnapshot(conn, d.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-d.Context().Done():
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "device closed"),
				time.Now().Add(streamWriteTimeout),
			)
			return
		case <-changed:
			if err := writeSnapshot(conn, d.Snapshot()); err != nil {
				logger.Debug("state stream write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snapshot interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(snapshot)
}
