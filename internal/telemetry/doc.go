/*
包 telemetry 创建网关的 OpenTelemetry provider。

TracerProvider 交给 HTTP 追踪中间件与 JSON-RPC 分发器，MeterProvider 交给
分发器的 rpc.server.* 指标。默认通过 OTLP gRPC 导出，根 span 按
sample_rate 采样、子 span 继承上游决定。WithSpanExporter / WithMetricReader
可以替换导出管线，WithoutGlobal 让 provider 只在本地使用。

遥测关闭时不创建任何导出器，访问器回落到全局 noop 实现。
*/
package telemetry
