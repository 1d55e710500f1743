package rpc

import (
	"context"
	"sync"
)

// =============================================================================
// 📬 条目副作用
// =============================================================================

type effectsKey struct{}

// effects 单个条目在求值期间登记的副作用
type effects struct {
	mu  sync.Mutex
	fns []func()
}

func withEffects(ctx context.Context) (context.Context, *effects) {
	e := &effects{}
	return context.WithValue(ctx, effectsKey{}, e), e
}

// AfterResponse 登记 fn，在当前条目的响应确定之后执行。
//
// 批量请求的条目可能并发求值，但登记的副作用总是在整个批量求值完成后
// 按输入顺序执行：同一会话收到的通知顺序与批量中的条目顺序一致。
// ctx 不来自 Dispatcher 时 fn 立即执行。
func AfterResponse(ctx context.Context, fn func()) {
	e, ok := ctx.Value(effectsKey{}).(*effects)
	if !ok {
		fn()
		return
	}
	e.mu.Lock()
	e.fns = append(e.fns, fn)
	e.mu.Unlock()
}

func (e *effects) run() {
	if e == nil {
		return
	}
	e.mu.Lock()
	fns := e.fns
	e.fns = nil
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
