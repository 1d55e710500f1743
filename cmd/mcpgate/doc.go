/*
Package main 提供 mcpgate 服务端程序入口。

# 概述

cmd/mcpgate 启动 JSON-RPC / MCP 工具网关：在同一端口上提供
JSON-RPC 入口（POST /、/message、/sse）、SSE 与 WebSocket 事件流、
健康检查和调试端点，并在独立端口暴露 Prometheus 指标。

# 核心类型

  - Server: 组装工具注册表、会话注册表、分发器与事件流，管理 HTTP 与 Metrics 双端口
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler

# 中间件链

Recovery、RequestID、SecurityHeaders、RequestLogger、MetricsMiddleware、
OTelTracing、CORS（OPTIONS 预检直接返回 204）、RateLimiter（基于 IP）。
所有包装器都透传 Flush 与 Hijack，事件流可以穿过整条链。

# 关闭

收到 SIGINT/SIGTERM 后先停止接收新连接，再通过关闭钩子结束所有会话，
事件流随之返回；最后关闭 Metrics 服务器并刷新遥测数据。
*/
package main
