package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/mcpgate/api/handlers"
	"github.com/BaSui01/mcpgate/config"
	"github.com/BaSui01/mcpgate/internal/channel"
	"github.com/BaSui01/mcpgate/internal/metrics"
	"github.com/BaSui01/mcpgate/internal/server"
	"github.com/BaSui01/mcpgate/internal/telemetry"
	"github.com/BaSui01/mcpgate/mcp"
	"github.com/BaSui01/mcpgate/rpc"
	"github.com/BaSui01/mcpgate/session"
	"github.com/BaSui01/mcpgate/stream"
	"github.com/BaSui01/mcpgate/tools"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 mcpgate 的主服务器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	providers *telemetry.Providers

	// Prometheus 命名空间，同一进程内多次构建时需不同
	metricsNamespace string

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 网关组件
	metricsCollector *metrics.Collector
	tools            *tools.Registry
	sessions         *session.Registry
	recorder         *mcp.Recorder
	dispatcher       *rpc.Dispatcher
	streamer         *stream.Streamer

	// Handlers
	healthHandler *handlers.HealthHandler
	rpcHandler    *handlers.RPCHandler
	streamHandler *handlers.StreamHandler
	debugHandler  *handlers.DebugHandler

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:              cfg,
		logger:           logger,
		providers:        providers,
		metricsNamespace: "mcpgate",
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	handler, err := s.buildHandler()
	if err != nil {
		return fmt.Errorf("failed to init gateway: %w", err)
	}

	if err := s.startHTTPServer(handler); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Duration("heartbeat_interval", s.cfg.Gateway.HeartbeatInterval),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initGateway 按依赖顺序构建工具注册表、会话注册表、分发器与事件流
func (s *Server) initGateway() error {
	gw := s.cfg.Gateway

	s.metricsCollector = metrics.NewCollector(s.metricsNamespace, s.logger)

	s.tools = tools.NewRegistry(s.logger, s.metricsCollector)
	if err := tools.RegisterBuiltins(s.tools); err != nil {
		return fmt.Errorf("register builtin tools: %w", err)
	}

	s.sessions = session.NewRegistry(channel.QueueConfig{
		Capacity: gw.QueueCapacity,
		Overflow: channel.OverflowPolicy(gw.OverflowPolicy),
	}, s.logger, session.WithMetrics(s.metricsCollector))

	methods := mcp.NewMethods(s.tools, s.sessions, s.logger,
		mcp.WithServerInfo(gw.ServerName, gw.ServerVersion),
		mcp.WithProtocolVersion(gw.ProtocolVersion),
	)

	s.recorder = mcp.NewRecorder()
	s.dispatcher = rpc.NewDispatcher(methods, s.logger,
		rpc.WithMetrics(s.metricsCollector),
		rpc.WithObserver(s.recorder),
		rpc.WithBatchConcurrency(gw.BatchConcurrency),
		rpc.WithTracerProvider(s.providers.TracerProvider()),
		rpc.WithMeterProvider(s.providers.MeterProvider()),
	)

	s.streamer = stream.NewStreamer(s.sessions, s.logger,
		stream.WithHeartbeatInterval(gw.HeartbeatInterval),
		stream.WithMetrics(s.metricsCollector),
	)

	s.logger.Info("Gateway initialized",
		zap.Int("tools", len(s.tools.List())),
		zap.Int("queue_capacity", gw.QueueCapacity),
		zap.String("overflow_policy", gw.OverflowPolicy),
	)
	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(Version, s.logger)
	s.healthHandler.RegisterCheck(handlers.NewCheckFunc("http_server", func(ctx context.Context) error {
		if s.httpManager == nil {
			return errors.New("http server not started")
		}
		if phase := s.httpManager.Phase(); phase != server.PhaseServing {
			return fmt.Errorf("http server %s", phase)
		}
		return nil
	}))

	s.rpcHandler = handlers.NewRPCHandler(s.dispatcher, s.cfg.Gateway.MaxBodyBytes, s.logger)
	s.streamHandler = handlers.NewStreamHandler(s.streamer, s.cfg.Server.CORSAllowedOrigins, s.logger)
	s.debugHandler = handlers.NewDebugHandler(s.recorder)
}

// =============================================================================
// 🌐 HTTP 路由与中间件
// =============================================================================

// buildHandler 构建网关组件、路由表与中间件链
func (s *Server) buildHandler() (http.Handler, error) {
	if err := s.initGateway(); err != nil {
		return nil, err
	}
	s.initHandlers()

	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)

	// 事件流
	mux.HandleFunc("GET /sse", s.streamHandler.HandleSSE)
	mux.HandleFunc("HEAD /sse", s.streamHandler.HandleSSEHead)
	mux.HandleFunc("GET /ws", s.streamHandler.HandleWS)

	// JSON-RPC：三个入口共用同一个 handler
	mux.HandleFunc("POST /sse", s.rpcHandler.HandleRPC)
	mux.HandleFunc("POST /message", s.rpcHandler.HandleRPC)
	mux.HandleFunc("POST /{$}", s.rpcHandler.HandleRPC)

	// 调试
	mux.HandleFunc("GET /debug/last", s.debugHandler.HandleLast)

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(s.providers.TracerProvider()),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	), nil
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer(handler http.Handler) error {
	serverConfig := server.Config{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	// 排空时先结束所有会话，SSE 与 WebSocket 事件流随之返回
	s.httpManager.OnShutdown(s.sessions.Close)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.Addr()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器，metrics_port 为 0 时跳过
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.metricsManager.Addr()))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown(context.Background())
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器（排空钩子会关闭会话注册表）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	} else if s.sessions != nil {
		s.sessions.Close()
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 刷新遥测数据
	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.providers.Shutdown(flushCtx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
