// Package webchat 提供浏览器聊天的 WebSocket 与 HTTP 接口。
// Package webchat serves browser chat over WebSocket and a plain HTTP ask endpoint.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assistant/internal/channel"
	"assistant/internal/mux"
	"assistant/internal/session"
	"assistant/internal/storage"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxFrameBytes = 64 << 10
	writeTimeout  = 10 * time.Second
	sessionPrefix = "web"
)

// Frame WebSocket 消息帧
// Frame is one WebSocket message
type Frame struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
}

// AskRequest POST /api/ask 请求体
// AskRequest is the POST /api/ask body
type AskRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// AskResponse POST /api/ask 响应体
// AskResponse is the POST /api/ask reply
type AskResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Handler 把 Web 请求转交给 Multiplexer
// Handler hands web requests to the multiplexer
type Handler struct {
	sub      channel.Submitter
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New 创建 webchat 处理器
// New creates the webchat handler
func New(sub channel.Submitter, logger zerolog.Logger) *Handler {
	return &Handler{
		sub: sub,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
		logger: logger.With().Str("component", "webchat").Logger(),
	}
}

// Register 在 mux 上挂载 /ws 与 /api/ask
// Register mounts /ws and /api/ask on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", h.serveWS)
	mux.HandleFunc("POST /api/ask", h.serveAsk)
}

// sameOrigin 只接受无 Origin 头（非浏览器客户端）或与 Host 相同的请求
// sameOrigin accepts requests without an Origin header (non-browser clients)
// or whose Origin host matches the Host header
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func sessionFor(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.NewSessionID(sessionPrefix)
	}
	if strings.HasPrefix(id, sessionPrefix+":") || strings.HasPrefix(id, sessionPrefix+"_") {
		return id
	}
	return sessionPrefix + ":" + id
}

func (h *Handler) serveAsk(w http.ResponseWriter, r *http.Request) {
	if !sameOrigin(r) {
		h.logger.Warn().Str("origin", r.Header.Get("Origin")).Msg("cross-origin ask rejected")
		writeJSON(w, http.StatusForbidden, AskResponse{Error: "cross-origin request"})
		return
	}
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AskResponse{Error: "invalid JSON body"})
		return
	}
	id := sessionFor(req.SessionID)
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, AskResponse{SessionID: id, Error: "text is required"})
		return
	}

	reply, err := h.sub.Ask(r.Context(), id, req.Text, session.OriginWeb)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, AskResponse{SessionID: id, Response: reply})
	case errors.Is(err, mux.ErrSessionBusy):
		writeJSON(w, http.StatusTooManyRequests, AskResponse{SessionID: id, Response: reply})
	default:
		h.logger.Warn().Str("session", id).Err(err).Msg("ask failed")
		writeJSON(w, http.StatusServiceUnavailable, AskResponse{SessionID: id, Error: err.Error()})
	}
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	id := sessionFor(r.URL.Query().Get("session"))
	h.logger.Debug().Str("session", id).Msg("websocket connected")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var in Frame
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Str("session", id).Err(err).Msg("websocket read ended")
			}
			return
		}
		if in.Type != "message" || strings.TrimSpace(in.Content) == "" {
			continue
		}
		reply, err := h.sub.Ask(ctx, id, in.Content, session.OriginWeb)
		if err != nil && !errors.Is(err, mux.ErrSessionBusy) {
			reply = err.Error()
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(Frame{Type: "message", Content: reply, SessionID: id}); err != nil {
			h.logger.Debug().Str("session", id).Err(err).Msg("websocket write failed")
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
