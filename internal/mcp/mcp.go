package mcp

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool 描述上游 MCP 服务暴露的一个工具。
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ContentBlock 是工具调用结果中的一段内容。
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Result 是一次工具调用的完整返回。
type Result struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Text 拼接结果中的全部文本内容。
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	var builder strings.Builder
	for _, block := range r.Content {
		if block.Type != "text" {
			continue
		}
		builder.WriteString(block.Text)
	}
	return strings.TrimSpace(builder.String())
}

// Connector 是上游 MCP 服务的抽象。实现必须支持并发调用。
type Connector interface {
	// Tools 返回服务暴露的工具列表。
	Tools(ctx context.Context) ([]Tool, error)
	// Call 以给定入参调用指定工具。
	Call(ctx context.Context, name string, input json.RawMessage) (*Result, error)
}
