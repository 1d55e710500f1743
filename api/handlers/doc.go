/*
Package handlers 提供网关 HTTP 端点的请求处理器实现。

# 核心类型

  - RPCHandler: POST /sse、POST /、POST /message：读取 JSON-RPC 信封并分发，
    响应形状与请求一致
  - StreamHandler: GET /sse（SSE）、HEAD /sse、GET /ws（WebSocket）事件流
  - DebugHandler: GET /debug/last：最近一次交换快照
  - HealthHandler: /health（固定 {"status":"ok"}）与 /ready（可插拔检查）
  - ResponseWriter: 捕获状态码与响应大小，透传 Flush / Hijack / Unwrap

# 辅助函数

  - WriteJSON / WriteError / WriteErrorMessage：统一 JSON 输出
  - ReadBody：带上限读取请求体，超限返回 413
  - ErrorCode → HTTP 状态码映射
*/
package handlers
