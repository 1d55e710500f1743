package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/mcpgate/internal/ctxkeys"
	"github.com/BaSui01/mcpgate/rpc"
)

// Exchange 最近一次请求/响应快照，供 GET /debug/last 展示
type Exchange struct {
	LastRequest  any    `json:"last_request"`
	LastResponse any    `json:"last_response"`
	UserAgent    string `json:"user_agent,omitempty"`

	// 产生该次交换的请求方
	RequestUserAgent string     `json:"request_user_agent,omitempty"`
	RequestID        string     `json:"request_id,omitempty"`
	RecordedAt       *time.Time `json:"recorded_at,omitempty"`
}

// Recorder 保存最近一次分发的请求与响应。实现 rpc.Observer。
type Recorder struct {
	mu   sync.RWMutex
	last Exchange
	now  func() time.Time
}

// NewRecorder 创建记录器
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Observe 实现 rpc.Observer。成功时记录 result，失败时记录 error 对象。
func (r *Recorder) Observe(ctx context.Context, req rpc.Request, resp rpc.Response) {
	var out any = resp.Result
	if resp.Error != nil {
		out = resp.Error
	}
	at := r.now()
	ua, _ := ctxkeys.UserAgent(ctx)
	rid, _ := ctxkeys.RequestID(ctx)

	r.mu.Lock()
	r.last = Exchange{
		LastRequest:      req,
		LastResponse:     out,
		RequestUserAgent: ua,
		RequestID:        rid,
		RecordedAt:       &at,
	}
	r.mu.Unlock()
}

// Snapshot 返回最近一次记录；尚无记录时两个字段均为 nil
func (r *Recorder) Snapshot() Exchange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}
