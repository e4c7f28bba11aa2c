package mcp

import (
	"context"
	"log/slog"
	"sync"

	"NFTScout/pkg/logger"
)

// Factory 构造一个 Connector 并返回其初始工具列表。
type Factory func(ctx context.Context) (Connector, []Tool, error)

// Holder 对 Connector 做受保护的惰性初始化。
// 首次使用时构造一次；构造失败不缓存，下次使用重试；
// 构造成功后所有调用方共享同一个实例和同一份只读工具列表。
type Holder struct {
	factory Factory
	log     *slog.Logger

	mu    sync.Mutex
	conn  Connector
	tools []Tool
}

// NewHolder 创建 Holder。
func NewHolder(factory Factory) *Holder {
	return &Holder{
		factory: factory,
		log:     logger.Named("mcp"),
	}
}

// Get 返回已初始化的 Connector 与工具列表，必要时先完成初始化。
// 互斥保证并发首次使用只触发一次构造。
func (h *Holder) Get(ctx context.Context) (Connector, []Tool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn != nil {
		return h.conn, h.tools, nil
	}

	conn, tools, err := h.factory(ctx)
	if err != nil {
		h.log.Error("MCP 连接初始化失败", slog.String("error", err.Error()))
		return nil, nil, err
	}

	h.conn = conn
	h.tools = tools
	h.log.Info("MCP 连接已就绪", slog.Int("tool_count", len(tools)))
	return h.conn, h.tools, nil
}

// Reset 丢弃已缓存的连接，下次 Get 将重新构造。
func (h *Holder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conn = nil
	h.tools = nil
}
