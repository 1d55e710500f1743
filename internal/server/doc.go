/*
包 server 管理网关 HTTP 监听的生命周期。

# 阶段

Manager 依次经历 idle → serving → draining → stopped，只会单向前进。
就绪检查读取 Phase：进入 draining 后 /ready 立即失败，负载均衡器
可以在连接排空期间摘除实例。

# 排空

http.Server.Shutdown 只等待连接变为空闲，不会取消 SSE 或被劫持的
WebSocket 请求。OnShutdown 注册的钩子在停止监听后按注册顺序同步执行
（例如关闭会话注册表），事件流随之结束，随后才等待其余 handler 返回。
ActiveConns 报告仍由 http.Server 管理的连接数，排空日志会带上它。
*/
package server
