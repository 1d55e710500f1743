package mcp

// MCP (Model Context Protocol) 握手与工具调用的数据结构

// ProtocolVersion 默认声明的 MCP 协议版本
const ProtocolVersion = "2024-11-05"

// 默认服务标识
const (
	DefaultServerName    = "ab-compat-railway-mcp"
	DefaultServerVersion = "0.3.0"
)

// 方法名（斜杠写法；点写法由 Methods 自动注册）
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// ServerInfo 服务器信息
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability 工具能力
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Capabilities 服务器能力
type Capabilities struct {
	Tools ToolsCapability `json:"tools"`
}

// InitializeResult initialize 的返回值
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// ToolInfo tools/list 中的单个工具。inputSchema 与 input_schema 同时输出，
// 兼容两种命名习惯的客户端。
type ToolInfo struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	InputSchema      map[string]any `json:"inputSchema"`
	InputSchemaSnake map[string]any `json:"input_schema"`
	Annotations      any            `json:"annotations"`
}

// ListToolsResult tools/list 的返回值
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// Content 内容块
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult tools/call 的返回值
type CallToolResult struct {
	Content []Content `json:"content"`
}

// TextResult 创建单个文本内容块的结果
func TextResult(text string) CallToolResult {
	return CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}
