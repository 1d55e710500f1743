package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/mcpgate/internal/pool"
	"github.com/BaSui01/mcpgate/session"
)

// frameBuffers 复用 SSE 帧缓冲，超过 64 KiB 的缓冲不回收
var frameBuffers = pool.NewBufferPool(512, 64<<10)

// SSESink 以 text/event-stream 帧写出事件：
//
//	event: message
//	data: <json>
//
type SSESink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSESink 写出 SSE 响应头并清除写超时，使服务端 WriteTimeout 不会切断长连接。
// 底层 ResponseWriter 不支持 Flush 时返回错误。
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return nil, fmt.Errorf("clear write deadline: %w", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &SSESink{w: w, rc: rc}, nil
}

// Name 实现 Sink
func (s *SSESink) Name() string { return "sse" }

// Send 实现 Sink
func (s *SSESink) Send(_ context.Context, ev session.Event) error {
	buf := frameBuffers.Get()
	defer frameBuffers.Put(buf)

	if err := writeFrame(buf, ev); err != nil {
		return err
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	return s.rc.Flush()
}

// EncodeSSE 把事件编码为一个完整的 SSE 帧
func EncodeSSE(ev session.Event) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, ev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFrame(buf *bytes.Buffer, ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	buf.Grow(len(data) + 24)
	buf.WriteString("event: message\n")
	buf.WriteString("data: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return nil
}
