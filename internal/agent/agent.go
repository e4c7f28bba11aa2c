package agent

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NFTScout/internal/collection"
	xerrors "NFTScout/internal/errors"
	"NFTScout/internal/llm"
	"NFTScout/internal/mcp"
	"NFTScout/internal/observability/alerting"
	"NFTScout/internal/session"
	"NFTScout/internal/storage/mysql"
	"NFTScout/internal/stream"
	"NFTScout/pkg/logger"
)

// saveToolName 是内置保存工具的名称，由本服务实现而非上游 MCP 服务。
const saveToolName = "save_collection"

const (
	defaultMaxSteps       = 30
	defaultSessionTimeout = 60 * time.Second
)

// SessionRequest 描述一次会话的输入。
type SessionRequest struct {
	SessionID    string `json:"session_id"`
	Message      string `json:"message"`
	Model        string `json:"model,omitempty"`
	Visibility   string `json:"visibility,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
}

// Agent 协调大模型、上游工具与集合持久化，是系统的业务核心。
type Agent struct {
	llmClient  llm.Client
	holder     *mcp.Holder
	sessions   session.Store
	repo       mysql.CollectionRepository
	extractor  *collection.Extractor
	normalizer *collection.Normalizer

	maxSteps       int
	sessionTimeout time.Duration
	alerts         alerting.Dispatcher
	log            *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithMaxSteps 设置单个会话允许的最大推理步数。
func WithMaxSteps(steps int) Option {
	return func(a *Agent) {
		a.maxSteps = steps
	}
}

// WithSessionTimeout 设置单个会话的总时长预算。
func WithSessionTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		a.sessionTimeout = timeout
	}
}

// WithAlerts 配置告警分发器，持久化失败等需要关注的事件会经其上报。
func WithAlerts(dispatcher alerting.Dispatcher) Option {
	return func(a *Agent) {
		a.alerts = dispatcher
	}
}

// New 创建一个 Agent。
func New(llmClient llm.Client, holder *mcp.Holder, sessions session.Store, repo mysql.CollectionRepository,
	extractor *collection.Extractor, normalizer *collection.Normalizer, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:      llmClient,
		holder:         holder,
		sessions:       sessions,
		repo:           repo,
		extractor:      extractor,
		normalizer:     normalizer,
		maxSteps:       defaultMaxSteps,
		sessionTimeout: defaultSessionTimeout,
		log:            logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.maxSteps <= 0 {
		ag.maxSteps = defaultMaxSteps
	}
	if ag.sessionTimeout <= 0 {
		ag.sessionTimeout = defaultSessionTimeout
	}
	return ag
}

// RunSession 运行一个会话直至产生终止事件。
// 单步失败（工具调用失败、载荷无法归一）不会终止会话；
// 只有持久化失败、推理失败与预算耗尽会产生 errored 终止。
func (a *Agent) RunSession(ctx context.Context, req SessionRequest, writer *stream.Writer) error {
	if a.llmClient == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return xerrors.New(xerrors.CodeValidation, "会话标识不能为空")
	}
	if strings.TrimSpace(req.Message) == "" {
		return xerrors.New(xerrors.CodeValidation, "会话消息不能为空")
	}

	if _, err := a.sessions.Create(ctx, req.SessionID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.sessionTimeout)
	defer cancel()

	connector, tools := a.connect(ctx)
	messages := a.buildInitialMessages(ctx, req)
	specs := buildToolSpecs(tools)

	for step := 0; step < a.maxSteps; step++ {
		resp, err := a.llmClient.Generate(ctx, llm.Request{
			Model:    req.Model,
			Messages: messages,
			Tools:    specs,
		})
		if err != nil {
			if stdErrors.Is(err, context.DeadlineExceeded) {
				a.finish(ctx, req.SessionID, writer, session.TerminalErrored, "会话时长预算已耗尽")
				return xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
			}
			a.finish(ctx, req.SessionID, writer, session.TerminalErrored, "推理失败")
			return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型推理失败")
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			a.finish(ctx, req.SessionID, writer, session.TerminalCompleted, resp.Content)
			return nil
		}

		stepRecord := session.Step{}
		var results []collection.ToolResult

		for _, call := range resp.ToolCalls {
			correlationID := call.ID
			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			if call.Name == saveToolName {
				done, err := a.saveCollection(ctx, req.SessionID, writer, call)
				if done {
					stepRecord.Invocations = append(stepRecord.Invocations, session.ToolInvocation{
						CorrelationID: correlationID,
						Name:          call.Name,
						Input:         call.Input,
						State:         session.InvocationCompleted,
					})
					_ = a.sessions.AppendStep(ctx, req.SessionID, stepRecord)
					return err
				}
				// 保存失败但尚未终止，把错误回传给模型继续推理。
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("保存失败: %v", err),
				})
				stepRecord.Invocations = append(stepRecord.Invocations, session.ToolInvocation{
					CorrelationID: correlationID,
					Name:          call.Name,
					Input:         call.Input,
					State:         session.InvocationCompleted,
				})
				continue
			}

			output := a.callUpstream(ctx, connector, writer, correlationID, call)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    output,
			})
			stepRecord.Invocations = append(stepRecord.Invocations, session.ToolInvocation{
				CorrelationID: correlationID,
				Name:          call.Name,
				Input:         call.Input,
				Output:        output,
				State:         session.InvocationCompleted,
			})
			if a.extractor != nil && a.extractor.IsDataTool(call.Name) {
				results = append(results, collection.ToolResult{Name: call.Name, Text: output})
			}
		}

		if err := a.sessions.AppendStep(ctx, req.SessionID, stepRecord); err != nil {
			a.log.Warn("记录会话步骤失败", slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
		}

		a.previewCandidate(ctx, req.SessionID, writer, results)

		if ctx.Err() != nil {
			a.finish(ctx, req.SessionID, writer, session.TerminalErrored, "会话时长预算已耗尽")
			return xerrors.New(xerrors.CodeTimeout, "会话时长预算已耗尽")
		}
	}

	a.finish(ctx, req.SessionID, writer, session.TerminalCompleted, "已达到最大推理步数")
	return nil
}

// DiscardSession 释放会话状态，由响应流关闭后的调用方触发。
func (a *Agent) DiscardSession(ctx context.Context, sessionID string) {
	if a.sessions != nil {
		a.sessions.Discard(ctx, sessionID)
	}
}

// connect 获取 MCP 连接与工具列表。连接失败只记录，会话在无工具状态下继续。
func (a *Agent) connect(ctx context.Context) (mcp.Connector, []mcp.Tool) {
	if a.holder == nil {
		return nil, nil
	}
	connector, tools, err := a.holder.Get(ctx)
	if err != nil {
		a.log.Warn("MCP 连接不可用，会话将在无上游工具状态下继续", slog.String("error", err.Error()))
		return nil, nil
	}
	return connector, tools
}

func (a *Agent) buildInitialMessages(ctx context.Context, req SessionRequest) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	if req.CollectionID != "" && a.repo != nil {
		record, err := a.repo.Get(ctx, req.CollectionID)
		if err != nil {
			a.log.Warn("加载集合上下文失败",
				slog.String("collection_id", req.CollectionID),
				slog.String("error", err.Error()))
		} else {
			messages = append(messages, llm.Message{
				Role:    llm.RoleSystem,
				Content: "当前会话关联的集合记录:\n" + string(record.Data),
			})
		}
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})
	return messages
}

// callUpstream 调用上游工具并发布对应的流事件。失败被软化为文本返回给模型。
func (a *Agent) callUpstream(ctx context.Context, connector mcp.Connector, writer *stream.Writer,
	correlationID string, call llm.ToolCall) string {
	writer.ToolCall(ctx, stream.ToolCallPayload{
		CorrelationID: correlationID,
		Name:          call.Name,
		Input:         call.Input,
	})

	if connector == nil {
		message := fmt.Sprintf("工具 %s 不可用: 上游服务未连接", call.Name)
		writer.ToolResult(ctx, stream.ToolResultPayload{
			CorrelationID: correlationID,
			Name:          call.Name,
			Output:        message,
			IsError:       true,
		})
		return message
	}

	result, err := connector.Call(ctx, call.Name, call.Input)
	if err != nil {
		a.log.Warn("上游工具调用失败",
			slog.String("tool", call.Name),
			slog.String("error", err.Error()))
		message := fmt.Sprintf("工具 %s 调用失败: %v", call.Name, err)
		writer.ToolResult(ctx, stream.ToolResultPayload{
			CorrelationID: correlationID,
			Name:          call.Name,
			Output:        message,
			IsError:       true,
		})
		return message
	}

	output := result.Text()
	writer.ToolResult(ctx, stream.ToolResultPayload{
		CorrelationID: correlationID,
		Name:          call.Name,
		Output:        output,
		IsError:       result.IsError,
	})
	return output
}

// saveCollection 处理内置保存工具。持久化成功后先发 saved-id 再发终止事件；
// 返回 done=true 表示会话已终止。
func (a *Agent) saveCollection(ctx context.Context, sessionID string, writer *stream.Writer, call llm.ToolCall) (bool, error) {
	if a.repo == nil {
		return false, xerrors.New(xerrors.CodeInitializationFailure, "未配置集合仓库")
	}

	var input struct {
		Collection json.RawMessage `json:"collection"`
	}
	if err := json.Unmarshal(call.Input, &input); err != nil || len(input.Collection) == 0 {
		return false, xerrors.New(xerrors.CodeValidation, "保存工具入参缺少 collection 字段")
	}

	candidate, err := a.normalizer.Normalize(string(input.Collection))
	if err != nil {
		return false, err
	}
	if !candidate.Complete() {
		return false, xerrors.New(xerrors.CodeValidation, "集合信息不完整，缺少名称、地址或链标识")
	}

	encoded, err := json.Marshal(candidate)
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeNormalization, err, "序列化集合候选失败")
	}

	id, err := a.repo.Save(ctx, encoded)
	if err != nil {
		a.log.Error("集合持久化失败", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		if a.alerts != nil {
			_ = a.alerts.Notify(context.WithoutCancel(ctx), alerting.Event{
				Code:       xerrors.CodePersistence,
				Message:    err.Error(),
				Severity:   xerrors.AttributesOf(xerrors.CodePersistence).Severity,
				SessionID:  sessionID,
				OccurredAt: time.Now().UTC(),
			})
		}
		a.finish(ctx, sessionID, writer, session.TerminalErrored, "保存集合失败")
		return true, xerrors.Wrap(xerrors.CodePersistence, err, "保存集合失败")
	}

	writer.SavedID(ctx, id)
	a.finish(ctx, sessionID, writer, session.TerminalCompleted, "集合已保存")
	return true, nil
}

// previewCandidate 从本步的数据类工具结果中提取并归一集合候选。
// 归一失败只记录，不产生事件。
func (a *Agent) previewCandidate(ctx context.Context, sessionID string, writer *stream.Writer, results []collection.ToolResult) {
	if a.extractor == nil || a.normalizer == nil || len(results) == 0 {
		return
	}
	payload, ok := a.extractor.Extract(results)
	if !ok {
		return
	}
	candidate, err := a.normalizer.Normalize(payload)
	if err != nil {
		a.log.Warn("集合载荷归一失败", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return
	}
	writer.Preview(ctx, candidate)
}

func (a *Agent) finish(ctx context.Context, sessionID string, writer *stream.Writer, status session.TerminalStatus, message string) {
	writer.Terminal(ctx, string(status), message)
	if err := a.sessions.MarkTerminal(context.WithoutCancel(ctx), sessionID, status); err != nil {
		a.log.Warn("标记会话终止状态失败", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
}

// buildToolSpecs 把上游工具列表与内置保存工具一起声明给模型。
func buildToolSpecs(tools []mcp.Tool) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(tools)+1)
	for _, tool := range tools {
		specs = append(specs, llm.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	specs = append(specs, llm.ToolSpec{
		Name:        saveToolName,
		Description: "将当前确认的 NFT 集合信息持久化保存，返回集合标识。",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"collection":{"type":"object","description":"完整的集合信息对象"}},"required":["collection"]}`),
	})
	return specs
}

const systemPrompt = "" +
	"You are NFTScout's research agent. " +
	"Use the available tools to look up NFT collection data, confirm details with the user, " +
	"and call save_collection once the collection information is complete. " +
	"Respond in the language the user writes in."
