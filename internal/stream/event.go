package stream

import (
	"encoding/json"
	"time"
)

// Kind 标识客户端事件的种类。
type Kind string

const (
	// KindPreviewCandidate 是归一后的集合候选预览，属于瞬态事件。
	KindPreviewCandidate Kind = "preview-candidate"
	// KindSavedID 携带持久化成功后的集合标识。
	KindSavedID Kind = "saved-id"
	// KindToolCall 表示一次上游工具调用已发出。
	KindToolCall Kind = "tool-call"
	// KindToolResult 携带上游工具调用的返回。
	KindToolResult Kind = "tool-result"
	// KindTerminal 是会话的终止事件，每个会话至多一条。
	KindTerminal Kind = "terminal"
)

// Event 是写入会话流的单条事件。Transient 为真的事件只推给在线客户端,
// 不会进入持久化历史。
type Event struct {
	SessionID string          `json:"session_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Transient bool            `json:"transient,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// TerminalPayload 是终止事件的载荷。
type TerminalPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SavedPayload 是 saved-id 事件的载荷。
type SavedPayload struct {
	CollectionID string `json:"collection_id"`
}

// ToolCallPayload 描述一次工具调用。
type ToolCallPayload struct {
	CorrelationID string          `json:"correlation_id"`
	Name          string          `json:"name"`
	Input         json.RawMessage `json:"input,omitempty"`
}

// ToolResultPayload 描述一次工具调用的结果。
type ToolResultPayload struct {
	CorrelationID string `json:"correlation_id"`
	Name          string `json:"name"`
	Output        string `json:"output,omitempty"`
	IsError       bool   `json:"is_error,omitempty"`
}

// HistorySink 接收非瞬态事件并持久化。实现方不得阻塞过久,
// 持久化失败只记录，不影响流本身。
type HistorySink interface {
	Append(event Event) error
}
