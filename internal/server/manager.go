package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🌐 HTTP 服务器管理器
// =============================================================================

// Phase 服务器生命周期阶段，只会单向前进
type Phase int32

const (
	PhaseIdle     Phase = iota // 尚未监听
	PhaseServing               // 正在接受连接
	PhaseDraining              // 关闭中：执行排空钩子并等待 handler 返回
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseServing:
		return "serving"
	case PhaseDraining:
		return "draining"
	case PhaseStopped:
		return "stopped"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Config 服务器配置
type Config struct {
	Addr string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	// 事件流 handler 会自行清除写超时
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxHeaderBytes int

	// 排空钩子与等待 handler 返回共用这一时限
	ShutdownTimeout time.Duration
}

// DefaultConfig 返回默认服务器配置
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Manager 管理一个 http.Server 的监听、排空与关闭
type Manager struct {
	srv    *http.Server
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	phase    Phase
	listener net.Listener
	drainFns []func()

	conns  atomic.Int64
	failed chan error
}

// NewManager 创建服务器管理器
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "http_server"), zap.String("addr", cfg.Addr)),
		failed: make(chan error, 1),
	}
	m.srv = &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ConnState:         m.trackConn,
	}
	return m
}

// trackConn 统计由 http.Server 管理的连接；被劫持的 WebSocket 连接不再计入
func (m *Manager) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		m.conns.Add(1)
	case http.StateHijacked, http.StateClosed:
		m.conns.Add(-1)
	}
}

// OnShutdown 注册排空钩子。Shutdown 按注册顺序同步执行钩子，然后才等待 handler 返回。
// http.Server.Shutdown 不会取消 SSE 与 WebSocket 请求的上下文，
// 事件流依赖这里注册的钩子结束自己的会话。
func (m *Manager) OnShutdown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainFns = append(m.drainFns, fn)
}

// =============================================================================
// 🎯 生命周期
// =============================================================================

// Start 开始监听（非阻塞）。只能调用一次。
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseIdle:
	case PhaseServing:
		return fmt.Errorf("server already started")
	default:
		return fmt.Errorf("server is closed")
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	m.listener = ln
	m.phase = PhaseServing
	m.logger.Info("listening", zap.String("bound", ln.Addr().String()))

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("serve failed", zap.Error(err))
		select {
		case m.failed <- err:
		default:
		}
	}()
	return nil
}

// Shutdown 停止接受新连接，执行排空钩子，然后等待 handler 返回。
// 重复调用直接返回 nil。锁不跨越等待过程，关闭期间的请求仍可查询 Phase。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.phase == PhaseDraining || m.phase == PhaseStopped {
		m.mu.Unlock()
		return nil
	}
	m.phase = PhaseDraining
	hooks := append([]func(){}, m.drainFns...)
	m.mu.Unlock()

	defer m.setPhase(PhaseStopped)

	m.logger.Info("draining",
		zap.Int64("open_conns", m.conns.Load()),
		zap.Int("hooks", len(hooks)),
	)
	for _, fn := range hooks {
		fn()
	}

	if m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Error("drain incomplete",
			zap.Int64("open_conns", m.conns.Load()),
			zap.Error(err),
		)
		return err
	}

	m.logger.Info("stopped")
	return nil
}

// WaitForShutdown 阻塞到收到 SIGINT/SIGTERM、ctx 结束或服务异常退出，然后执行 Shutdown
func (m *Manager) WaitForShutdown(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		if ctx.Err() != nil {
			m.logger.Info("shutdown requested", zap.Error(ctx.Err()))
		} else {
			m.logger.Info("received shutdown signal")
		}
	case err := <-m.failed:
		m.logger.Error("server exited unexpectedly", zap.Error(err))
	}

	if err := m.Shutdown(context.Background()); err != nil {
		m.logger.Error("shutdown error", zap.Error(err))
	}
}

// =============================================================================
// 🔧 状态查询
// =============================================================================

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// Phase 返回当前生命周期阶段
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// IsRunning 是否正在接受连接
func (m *Manager) IsRunning() bool {
	return m.Phase() == PhaseServing
}

// ActiveConns 当前由 http.Server 管理的连接数
func (m *Manager) ActiveConns() int64 {
	return m.conns.Load()
}

// Addr 返回实际监听地址；未启动时返回配置地址
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.cfg.Addr
}
