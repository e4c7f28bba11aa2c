package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"NFTScout/pkg/logger"
)

// Writer 把单个会话的事件按产生顺序写入一条通道。
// 事件顺序即写入顺序；终止事件由闩锁保证至多发出一次，
// 且发出之后任何写入都会被静默丢弃。
type Writer struct {
	sessionID string
	events    chan Event
	history   HistorySink
	log       *slog.Logger

	mu       sync.Mutex
	terminal bool
	closed   bool
}

// NewWriter 创建 Writer。history 允许为空，此时非瞬态事件不做持久化。
func NewWriter(sessionID string, history HistorySink) *Writer {
	return &Writer{
		sessionID: sessionID,
		events:    make(chan Event, 64),
		history:   history,
		log:       logger.Named("stream"),
	}
}

// Events 返回只读事件通道，Writer 关闭后通道随之关闭。
func (w *Writer) Events() <-chan Event {
	return w.events
}

// Preview 发布一条瞬态的集合候选预览。
func (w *Writer) Preview(ctx context.Context, candidate any) {
	w.emit(ctx, KindPreviewCandidate, candidate, true)
}

// ToolCall 发布一条瞬态的工具调用事件。
func (w *Writer) ToolCall(ctx context.Context, payload ToolCallPayload) {
	w.emit(ctx, KindToolCall, payload, true)
}

// ToolResult 发布一条瞬态的工具结果事件。
func (w *Writer) ToolResult(ctx context.Context, payload ToolResultPayload) {
	w.emit(ctx, KindToolResult, payload, true)
}

// SavedID 发布持久化成功后的集合标识，进入持久化历史。
func (w *Writer) SavedID(ctx context.Context, collectionID string) {
	w.emit(ctx, KindSavedID, SavedPayload{CollectionID: collectionID}, false)
}

// Terminal 发布终止事件。重复调用只有第一次生效。
func (w *Writer) Terminal(ctx context.Context, status, message string) {
	w.mu.Lock()
	if w.terminal {
		w.mu.Unlock()
		w.log.Warn("重复的终止事件被丢弃", slog.String("session_id", w.sessionID), slog.String("status", status))
		return
	}
	w.terminal = true
	w.mu.Unlock()

	w.send(ctx, w.build(KindTerminal, TerminalPayload{Status: status, Message: message}, false))
}

// Terminated 报告终止事件是否已经发出。
func (w *Writer) Terminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminal
}

// Close 关闭事件通道。之后的写入一律丢弃。
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.events)
}

func (w *Writer) emit(ctx context.Context, kind Kind, payload any, transient bool) {
	w.mu.Lock()
	if w.terminal {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.send(ctx, w.build(kind, payload, transient))
}

func (w *Writer) build(kind Kind, payload any, transient bool) Event {
	encoded, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("事件载荷序列化失败", slog.String("kind", string(kind)), slog.String("error", err.Error()))
		encoded = nil
	}
	return Event{
		SessionID: w.sessionID,
		Kind:      kind,
		Payload:   encoded,
		Transient: transient,
		EmittedAt: time.Now().UTC(),
	}
}

func (w *Writer) send(ctx context.Context, event Event) {
	if !event.Transient && w.history != nil {
		if err := w.history.Append(event); err != nil {
			w.log.Error("事件历史写入失败",
				slog.String("session_id", w.sessionID),
				slog.String("kind", string(event.Kind)),
				slog.String("error", err.Error()))
		}
	}

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	// 终止事件可能在 ctx 过期之后发出，只要通道还有缓冲位就必须投递。
	select {
	case w.events <- event:
		return
	default:
	}

	select {
	case w.events <- event:
	case <-ctx.Done():
		w.log.Warn("事件投递被取消", slog.String("session_id", w.sessionID), slog.String("kind", string(event.Kind)))
	}
}
