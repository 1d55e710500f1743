package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"

	"github.com/BaSui01/mcpgate/session"
)

// WSSink 以 WebSocket 文本消息写出事件，每个事件一条消息。
type WSSink struct {
	conn *websocket.Conn
}

// NewWSSink 包装已建立的连接
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn}
}

// Name 实现 Sink
func (s *WSSink) Name() string { return "ws" }

// Send 实现 Sink
func (s *WSSink) Send(ctx context.Context, ev session.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.conn.Write(ctx, websocket.MessageText, body)
}
