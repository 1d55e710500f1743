package stream

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/mcpgate/internal/channel"
	"github.com/BaSui01/mcpgate/internal/metrics"
	"github.com/BaSui01/mcpgate/session"
)

// DefaultHeartbeatInterval 心跳默认间隔
const DefaultHeartbeatInterval = 15 * time.Second

// Sink 事件流的写出端（SSE、WebSocket）
type Sink interface {
	// Name 返回传输名称，用作指标标签
	Name() string
	// Send 写出一个事件并立即刷新
	Send(ctx context.Context, ev session.Event) error
}

// Streamer 把会话队列中的事件按 FIFO 顺序写到 Sink，并周期性注入心跳。
type Streamer struct {
	sessions *session.Registry
	interval time.Duration
	clock    clockwork.Clock

	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option 配置 Streamer
type Option func(*Streamer)

// WithHeartbeatInterval 设置心跳间隔，d <= 0 时使用默认值
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Streamer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock 注入时钟（测试使用 clockwork.NewFakeClock）
func WithClock(c clockwork.Clock) Option {
	return func(s *Streamer) { s.clock = c }
}

// WithMetrics 记录事件送达与流时长
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Streamer) { s.metrics = c }
}

// NewStreamer 创建 Streamer
func NewStreamer(sessions *session.Registry, logger *zap.Logger, opts ...Option) *Streamer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Streamer{
		sessions: sessions,
		interval: DefaultHeartbeatInterval,
		clock:    clockwork.NewRealClock(),
		logger:   logger.With(zap.String("component", "streamer")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 为 sessionID 打开事件流，阻塞直到流结束。
//
// 结束条件：ctx 取消（客户端断开、服务关闭）、会话被外部注销、Sink 写出失败。
// 无论哪种情况，心跳都会停止，会话都会被注销。前两种返回 nil，写出失败返回该错误。
func (s *Streamer) Run(ctx context.Context, sessionID string, sink Sink) error {
	sess := s.sessions.Register(sessionID)
	start := s.clock.Now()
	logger := s.logger.With(
		zap.String("session_id", sessionID),
		zap.String("transport", sink.Name()),
	)
	logger.Info("stream opened")

	defer func() {
		s.sessions.Detach(sess)
		s.metrics.RecordStream(sink.Name(), s.clock.Since(start))
		logger.Info("stream closed", zap.Duration("duration", s.clock.Since(start)))
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.heartbeat(gctx, sess)
		return nil
	})
	g.Go(func() error {
		return s.drain(gctx, sess, sink)
	})

	err := g.Wait()
	if err == nil || errors.Is(err, channel.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	logger.Debug("stream write failed", zap.Error(err))
	return err
}

// drain 逐个取出事件并写出。返回非 nil 时 errgroup 会取消心跳。
func (s *Streamer) drain(ctx context.Context, sess *session.Session, sink Sink) error {
	for {
		ev, err := sess.Next(ctx)
		if err != nil {
			return err
		}
		if err := sink.Send(ctx, ev); err != nil {
			return err
		}
		s.metrics.RecordEventDelivered(string(ev.Type), sink.Name())
	}
}

// heartbeat 每个间隔向同一队列注入心跳；会话关闭后静默退出。
func (s *Streamer) heartbeat(ctx context.Context, sess *session.Session) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case <-ticker.Chan():
			s.sessions.Deliver(sess, session.NewHeartbeat(sess.ID()))
		}
	}
}
