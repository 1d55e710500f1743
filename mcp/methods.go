package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpgate/rpc"
	"github.com/BaSui01/mcpgate/session"
	"github.com/BaSui01/mcpgate/tools"
	"github.com/BaSui01/mcpgate/types"
)

// sessionKeys 可携带会话 id 的字段，按优先级排列
var sessionKeys = []string{"session_id", "client_id"}

// Methods MCP 方法表，实现 rpc.Router。每个方法同时接受斜杠与点两种写法。
type Methods struct {
	tools    *tools.Registry
	sessions *session.Registry

	info            ServerInfo
	protocolVersion string

	table  map[string]rpc.HandlerFunc
	logger *zap.Logger
}

// Option 配置 Methods
type Option func(*Methods)

// WithServerInfo 设置 initialize 返回的服务标识
func WithServerInfo(name, version string) Option {
	return func(m *Methods) {
		if name != "" {
			m.info.Name = name
		}
		if version != "" {
			m.info.Version = version
		}
	}
}

// WithProtocolVersion 设置 initialize 返回的协议版本
func WithProtocolVersion(v string) Option {
	return func(m *Methods) {
		if v != "" {
			m.protocolVersion = v
		}
	}
}

// NewMethods 创建方法表。sessions 为 nil 时 tools/call 不推送通知。
func NewMethods(toolRegistry *tools.Registry, sessions *session.Registry, logger *zap.Logger, opts ...Option) *Methods {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Methods{
		tools:           toolRegistry,
		sessions:        sessions,
		info:            ServerInfo{Name: DefaultServerName, Version: DefaultServerVersion},
		protocolVersion: ProtocolVersion,
		table:           make(map[string]rpc.HandlerFunc),
		logger:          logger.With(zap.String("component", "mcp_methods")),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.handle(MethodInitialize, m.initialize)
	m.handle(MethodInitialized, m.initialized)
	m.handle(MethodToolsList, m.listTools)
	m.handle(MethodToolsCall, m.callTool)
	return m
}

// handle 注册斜杠写法及其点写法别名
func (m *Methods) handle(method string, h rpc.HandlerFunc) {
	m.table[method] = h
	m.table[strings.ReplaceAll(method, "/", ".")] = h
}

// Lookup 实现 rpc.Router
func (m *Methods) Lookup(method string) (rpc.HandlerFunc, bool) {
	h, ok := m.table[method]
	return h, ok
}

// =============================================================================
// 🤝 握手
// =============================================================================

func (m *Methods) initialize(context.Context, map[string]any) (any, error) {
	return InitializeResult{
		ProtocolVersion: m.protocolVersion,
		Capabilities:    Capabilities{Tools: ToolsCapability{ListChanged: true}},
		ServerInfo:      m.info,
	}, nil
}

func (m *Methods) initialized(context.Context, map[string]any) (any, error) {
	return map[string]any{"ok": true}, nil
}

// =============================================================================
// 🔧 工具
// =============================================================================

func (m *Methods) listTools(context.Context, map[string]any) (any, error) {
	defs := m.tools.List()
	infos := make([]ToolInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, ToolInfo{
			Name:             def.Name,
			Description:      def.Description,
			InputSchema:      def.InputSchema,
			InputSchemaSnake: def.InputSchema,
		})
	}
	return ListToolsResult{Tools: infos}, nil
}

func (m *Methods) callTool(ctx context.Context, params map[string]any) (any, error) {
	if params == nil {
		return nil, types.NewError(types.ErrInvalidParams, "params must be an object")
	}
	name, ok := params["name"].(string)
	if !ok || name == "" {
		return nil, types.NewError(types.ErrInvalidParams, "'name' must be a non-empty string")
	}

	var args map[string]any
	switch a := params["arguments"].(type) {
	case map[string]any:
		args = a
	case nil:
		return nil, types.NewError(types.ErrInvalidParams, "'arguments' is required")
	default:
		return nil, types.NewError(types.ErrInvalidParams, "'arguments' must be an object")
	}

	value, err := m.tools.Call(ctx, name, args)
	if err != nil {
		return nil, err
	}
	result := TextResult(stringify(value))

	if sid := sessionID(params, args); sid != "" && m.sessions != nil {
		// 批量请求中按条目顺序推送
		rpc.AfterResponse(ctx, func() {
			delivered := m.sessions.Push(session.NewToolResult(sid, name, args, result))
			m.logger.Debug("tool result notification",
				zap.String("tool", name),
				zap.String("session_id", sid),
				zap.Bool("delivered", delivered),
			)
		})
	}
	return result, nil
}

// sessionID 取第一个非空的会话 id：params 优先于 arguments
func sessionID(params, args map[string]any) string {
	for _, src := range []map[string]any{params, args} {
		for _, key := range sessionKeys {
			if s, ok := src[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// stringify 把工具输出转成文本内容
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	case nil:
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
