/*
包 metrics 提供基于 Prometheus 的网关指标采集能力，覆盖
HTTP、JSON-RPC、工具调用、会话与事件流四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。
Collector 的记录方法对 nil 接收者安全，核心包可以在未启用指标时
直接持有 nil。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    状态码归类为 2xx/3xx/4xx/5xx。
  - JSON-RPC 指标：按 method/outcome 计数与耗时，批量大小分布。
  - 工具指标：按 tool/status 计数与耗时。
  - 会话指标：活跃会话 Gauge、累计会话数。
  - 事件指标：入队、送达（按 transport）、丢弃（按 reason）计数，
    以及事件流生命周期。
*/
package metrics
