// Package mcp 实现 MCP 方法表（initialize、notifications/initialized、
// tools/list、tools/call，均接受斜杠与点两种写法）以及 /debug/last 使用的
// 请求记录器。方法表实现 rpc.Router，记录器实现 rpc.Observer。
package mcp
