package session

import (
	"encoding/json"

	xerrors "NFTScout/internal/errors"
)

// TerminalStatus 表示会话的终态标记。
type TerminalStatus string

const (
	TerminalUnset     TerminalStatus = ""
	TerminalCompleted TerminalStatus = "completed"
	TerminalErrored   TerminalStatus = "errored"
)

// InvocationState 表示一次工具调用的状态。
type InvocationState string

const (
	InvocationRequested InvocationState = "requested"
	InvocationCompleted InvocationState = "completed"
)

// ToolInvocation 描述一次具名的工具调用及其结果。
// Output 在调用完成前保持为空。
type ToolInvocation struct {
	CorrelationID string          `json:"correlation_id"`
	Name          string          `json:"name"`
	Input         json.RawMessage `json:"input,omitempty"`
	Output        string          `json:"output,omitempty"`
	State         InvocationState `json:"state"`
}

// Step 表示交互循环中的一轮，携带本轮产生的全部工具调用。
type Step struct {
	Index       int              `json:"index"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
}

// Session 标识一次端到端的会话，随响应流关闭而丢弃。
type Session struct {
	ID        string         `json:"id"`
	Steps     []Step         `json:"steps,omitempty"`
	Terminal  TerminalStatus `json:"terminal,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

var (
	// ErrNotFound 表示指定的会话不存在。
	ErrNotFound = xerrors.New(xerrors.CodeNotFound, "会话不存在")
	// ErrConflict 表示会话 ID 或关联 ID 已被占用。
	ErrConflict = xerrors.New(xerrors.CodeInvalidArgument, "会话标识冲突")
	// ErrTerminal 表示会话已进入终态，不接受新的步骤。
	ErrTerminal = xerrors.New(xerrors.CodeInvalidArgument, "会话已结束")
)

// cloneStep 深拷贝一个步骤，避免调用方修改内部状态。
func cloneStep(step Step) Step {
	clone := Step{Index: step.Index}
	if len(step.Invocations) > 0 {
		clone.Invocations = make([]ToolInvocation, len(step.Invocations))
		for i, inv := range step.Invocations {
			clone.Invocations[i] = ToolInvocation{
				CorrelationID: inv.CorrelationID,
				Name:          inv.Name,
				Input:         cloneRaw(inv.Input),
				Output:        inv.Output,
				State:         inv.State,
			}
		}
	}
	return clone
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	clone := make(json.RawMessage, len(raw))
	copy(clone, raw)
	return clone
}
