// Package histsink provides history sink implementations for the agent
// session runtime: an append-only JSONL file, a SQLite table, and a
// live WebSocket feed.
package histsink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/emilhart/coxswain/agentcore"
)

// JSONLSink appends one JSON line per history event to a file.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	return &JSONLSink{file: f}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Append(_ context.Context, ev agentcore.HistoryEvent) error {
	line := append(agentcore.MarshalSafe(ev), '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("appending history event: %w", err)
	}
	return nil
}

func (s *JSONLSink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
