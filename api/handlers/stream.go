package handlers

import (
	"context"
	"net/http"
	"unicode"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/mcpgate/session"
	"github.com/BaSui01/mcpgate/stream"
	"github.com/BaSui01/mcpgate/types"
)

// maxSessionIDLen 会话 id 的最大长度
const maxSessionIDLen = 256

// SessionIDHeader 响应头中回显实际使用的会话 id
const SessionIDHeader = "X-Session-Id"

// Streamer 运行一个会话事件流直到结束
type Streamer interface {
	Run(ctx context.Context, sessionID string, sink stream.Sink) error
}

// =============================================================================
// 📺 事件流 Handler
// =============================================================================

// StreamHandler 处理 GET/HEAD /sse 与 GET /ws
type StreamHandler struct {
	streamer       Streamer
	originPatterns []string
	logger         *zap.Logger
}

// NewStreamHandler 创建事件流处理器。originPatterns 用于 WebSocket 跨域校验，
// 包含 "*" 时接受任意来源。
func NewStreamHandler(streamer Streamer, originPatterns []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		streamer:       streamer,
		originPatterns: originPatterns,
		logger:         logger.With(zap.String("component", "stream_handler")),
	}
}

// HandleSSE 处理 GET /sse?session_id=<id>（client_id 为别名，缺省时生成）
func (h *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	w.Header().Set(SessionIDHeader, id)
	sink, err := stream.NewSSESink(w)
	if err != nil {
		h.logger.Error("SSE not supported", zap.Error(err))
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", nil)
		return
	}

	if err := h.streamer.Run(r.Context(), id, sink); err != nil {
		h.logger.Debug("SSE stream ended with error", zap.String("session_id", id), zap.Error(err))
	}
}

// HandleSSEHead 处理 HEAD /sse：声明端点存在
func (h *StreamHandler) HandleSSEHead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
}

// HandleWS 处理 GET /ws?session_id=<id>：每个事件一条文本消息
func (h *StreamHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	for _, p := range h.originPatterns {
		if p == "*" {
			opts.InsecureSkipVerify = true
		}
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	// CloseRead 在对端关闭时取消 ctx，事件流随之结束
	ctx := conn.CloseRead(r.Context())
	if err := h.streamer.Run(ctx, id, stream.NewWSSink(conn)); err != nil {
		h.logger.Debug("websocket stream ended with error", zap.String("session_id", id), zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "stream closed")
}

// sessionID 取 session_id 或 client_id 查询参数，缺省时生成新的 id
func (h *StreamHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query()
	id := q.Get("session_id")
	if id == "" {
		id = q.Get("client_id")
	}
	if id == "" {
		return session.NewID(), true
	}
	if !validSessionID(id) {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "invalid session_id", h.logger)
		return "", false
	}
	return id, true
}

func validSessionID(id string) bool {
	if len(id) > maxSessionIDLen {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
