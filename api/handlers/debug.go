package handlers

import (
	"net/http"

	"github.com/BaSui01/mcpgate/mcp"
)

// DebugHandler 暴露最近一次 JSON-RPC 交换
type DebugHandler struct {
	recorder *mcp.Recorder
}

// NewDebugHandler 创建调试处理器
func NewDebugHandler(recorder *mcp.Recorder) *DebugHandler {
	return &DebugHandler{recorder: recorder}
}

// HandleLast 处理 GET /debug/last。user_agent 取当前调用方。
func (h *DebugHandler) HandleLast(w http.ResponseWriter, r *http.Request) {
	snap := h.recorder.Snapshot()
	snap.UserAgent = r.UserAgent()
	WriteJSON(w, http.StatusOK, snap)
}
