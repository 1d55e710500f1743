package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpgate/internal/ctxkeys"
	"github.com/BaSui01/mcpgate/rpc"
	"github.com/BaSui01/mcpgate/types"
)

// Dispatcher 处理原始 JSON-RPC 请求体
type Dispatcher interface {
	HandleBody(ctx context.Context, body []byte) (any, int)
}

// =============================================================================
// 📡 JSON-RPC Handler
// =============================================================================

// RPCHandler 处理 POST /sse、POST /、POST /message
type RPCHandler struct {
	dispatcher   Dispatcher
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewRPCHandler 创建 JSON-RPC 处理器
func NewRPCHandler(dispatcher Dispatcher, maxBodyBytes int64, logger *zap.Logger) *RPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &RPCHandler{
		dispatcher:   dispatcher,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(zap.String("component", "rpc_handler")),
	}
}

// HandleRPC 读取请求体并分发，响应形状与请求一致（对象对对象，数组对数组）
func (h *RPCHandler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		status := http.StatusBadRequest
		message := err.Error()
		if e, ok := types.AsError(err); ok {
			message = e.Message
			if e.HTTPStatus != 0 {
				status = e.HTTPStatus
			}
		}
		h.logger.Debug("rejecting request body", zap.Int("status", status), zap.String("reason", message))
		WriteJSON(w, status, rpc.NewError(nil, rpc.CodeInvalidRequest, "Invalid Request: "+message))
		return
	}

	ctx := r.Context()
	if ua := r.UserAgent(); ua != "" {
		ctx = ctxkeys.WithUserAgent(ctx, ua)
	}

	payload, status := h.dispatcher.HandleBody(ctx, body)
	WriteJSON(w, status, payload)
}
