/*
包 stream 实现会话事件流。

Streamer.Run 注册会话后并发运行两个任务（errgroup）：

  - drain：阻塞等待会话队列中的下一个事件，立即通过 Sink 写出，
    保持 FIFO 顺序，不重排、不合并。
  - heartbeat：每个间隔向同一队列注入 {"type":"heartbeat"} 事件，
    会话关闭后静默退出。

任一路径退出（客户端断开、ctx 取消、Sink 写出失败、会话被外部注销、
服务关闭）都会停止心跳并注销会话。时钟可注入（clockwork），
测试无需真实等待。

Sink 有两种实现：SSESink（event: message + data: <json>）与
WSSink（coder/websocket 文本消息）。
*/
package stream
