package histsink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emilhart/coxswain/agentcore"
)

// WSSink streams history events to a WebSocket peer as JSON text
// frames, one event per frame.
type WSSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSSink wraps an established connection. The sink takes ownership
// of writes; the caller must not write to the connection concurrently.
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn}
}

// DialWSSink connects to a WebSocket endpoint and returns a sink over
// the connection.
func DialWSSink(ctx context.Context, url string) (*WSSink, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing history stream: %w", err)
	}
	return NewWSSink(conn), nil
}

func (s *WSSink) Name() string { return "websocket" }

func (s *WSSink) Append(_ context.Context, ev agentcore.HistoryEvent) error {
	data := agentcore.MarshalSafe(ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing history frame: %w", err)
	}
	return nil
}

// Flush is a no-op; frames are written unbuffered.
func (s *WSSink) Flush(_ context.Context) error { return nil }

func (s *WSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
