/*
包 rpc 实现 JSON-RPC 2.0 信封解析与请求分发。

# 信封

  - 请求体无法解析为 JSON：单个 -32700 "Parse error"，HTTP 400。
  - 数组：批量请求，每个条目独立处理，响应顺序与输入一致；
    可并发求值（WithBatchConcurrency），空数组返回空数组。
  - 对象：单条请求，返回单个响应对象。
  - 其他 JSON 值：-32600 "Invalid Request: must be object or array"，HTTP 400。

# 条目

id 原样回显（保留原始字节与类型，缺省为 null）；jsonrpc 缺省或为空时视为 "2.0"；
method 不是字符串时按未知方法处理（-32601）。params 缺省或为 null 时为空对象，
不是对象时以 nil 交给处理函数，由方法自行决定是否拒绝。数字以 json.Number
形式交给处理函数，避免大整数丢失精度。

# 错误映射

处理函数返回的校验类 types.Error（参数、未知工具、缺少必填字段）映射为
-32000 "HTTP error: <描述>"；其他错误与 panic 映射为 -32000 "Server error: ..."。
每个条目都会生成 OpenTelemetry span（rpc.<method>）并计入 Prometheus 指标。

# 副作用

处理函数通过 AfterResponse 登记的副作用（例如向会话推送通知）以及 Observer
回调，在批量请求全部求值完成后按输入顺序执行。
*/
package rpc
