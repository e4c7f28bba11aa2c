package llm

import (
	"context"
	"encoding/json"
)

// Role 标识消息的发言方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message 是对话中的一条消息。工具结果消息须携带对应的 ToolCallID。
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall 是模型发起的一次工具调用请求。
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolSpec 向模型声明一个可用工具。
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Request 描述一轮推理的完整上下文。
type Request struct {
	Model    string
	Messages []Message
	Tools    []ToolSpec
}

// Response 是模型的一轮输出。ToolCalls 非空表示模型要求调用工具。
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client 是大模型推理客户端的抽象。
type Client interface {
	// Generate 基于请求上下文生成一轮输出。
	Generate(ctx context.Context, req Request) (*Response, error)
}
