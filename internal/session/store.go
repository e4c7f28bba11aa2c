package session

import (
	"context"
	"sync"
	"time"

	xerrors "NFTScout/internal/errors"
)

// Store 抽象会话状态的保存接口。会话随请求存亡，
// 默认实现保存在内存中并在流关闭后移除。
type Store interface {
	Create(ctx context.Context, id string) (*Session, error)
	AppendStep(ctx context.Context, id string, step Step) error
	MarkTerminal(ctx context.Context, id string, status TerminalStatus) error
	Get(ctx context.Context, id string) (*Session, error)
	Discard(ctx context.Context, id string)
}

// MemoryStore 以内存方式保存会话状态。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// correlations 记录每个会话中已出现的关联 ID，保证会话内唯一。
	correlations map[string]map[string]struct{}
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*Session),
		correlations: make(map[string]map[string]struct{}),
	}
}

// Create 登记一个新会话。
func (m *MemoryStore) Create(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "会话 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return nil, ErrConflict
	}
	sess := &Session{ID: id, CreatedAt: time.Now().Unix()}
	m.sessions[id] = sess
	m.correlations[id] = make(map[string]struct{})
	clone := *sess
	return &clone, nil
}

// AppendStep 记录一轮交互，并校验关联 ID 在会话内唯一。
func (m *MemoryStore) AppendStep(_ context.Context, id string, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Terminal != TerminalUnset {
		return ErrTerminal
	}
	seen := m.correlations[id]
	for _, inv := range step.Invocations {
		if inv.CorrelationID == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "工具调用缺少关联 ID")
		}
		if _, dup := seen[inv.CorrelationID]; dup {
			return ErrConflict
		}
	}
	for _, inv := range step.Invocations {
		seen[inv.CorrelationID] = struct{}{}
	}
	step.Index = len(sess.Steps)
	sess.Steps = append(sess.Steps, cloneStep(step))
	return nil
}

// MarkTerminal 设置会话终态。终态只允许设置一次。
func (m *MemoryStore) MarkTerminal(_ context.Context, id string, status TerminalStatus) error {
	if status == TerminalUnset {
		return xerrors.New(xerrors.CodeInvalidArgument, "终态不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Terminal != TerminalUnset {
		return ErrTerminal
	}
	sess.Terminal = status
	return nil
}

// Get 返回会话的副本。
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := Session{ID: sess.ID, Terminal: sess.Terminal, CreatedAt: sess.CreatedAt}
	if len(sess.Steps) > 0 {
		clone.Steps = make([]Step, len(sess.Steps))
		for i, step := range sess.Steps {
			clone.Steps[i] = cloneStep(step)
		}
	}
	return &clone, nil
}

// Discard 在响应流关闭后释放会话状态。
func (m *MemoryStore) Discard(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.correlations, id)
}
