package history

import (
	"sync"

	"NFTScout/internal/stream"
)

// MemorySink 把非瞬态事件按写入顺序保存在内存里，供测试和单机部署使用。
type MemorySink struct {
	mu     sync.Mutex
	events []stream.Event
}

// NewMemorySink 创建内存事件历史。
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append 追加一条事件。
func (s *MemorySink) Append(event stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events 返回当前全部事件的副本。
func (s *MemorySink) Events() []stream.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stream.Event, len(s.events))
	copy(out, s.events)
	return out
}

// BySession 返回指定会话的事件副本。
func (s *MemorySink) BySession(sessionID string) []stream.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stream.Event
	for _, event := range s.events {
		if event.SessionID == sessionID {
			out = append(out, event)
		}
	}
	return out
}
