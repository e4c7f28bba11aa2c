package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"NFTScout/internal/collection"
	"NFTScout/internal/llm"
	"NFTScout/internal/mcp"
	"NFTScout/internal/session"
	"NFTScout/internal/storage/mysql"
	"NFTScout/internal/stream"
)

type scriptedLLM struct {
	responses []*llm.Response
	err       error
	wait      time.Duration
	calls     int
}

func (s *scriptedLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		return &llm.Response{Content: "完成"}, nil
	}
	return s.responses[idx], nil
}

type stubConnector struct {
	outputs map[string]string
	err     error
}

func (s *stubConnector) Tools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{{Name: "get_collections"}}, nil
}

func (s *stubConnector) Call(ctx context.Context, name string, input json.RawMessage) (*mcp.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &mcp.Result{Content: []mcp.ContentBlock{{Type: "text", Text: s.outputs[name]}}}, nil
}

func newTestAgent(t *testing.T, llmClient llm.Client, connector mcp.Connector, repo mysql.CollectionRepository, opts ...Option) (*Agent, session.Store) {
	t.Helper()
	holder := mcp.NewHolder(func(ctx context.Context) (mcp.Connector, []mcp.Tool, error) {
		if connector == nil {
			return nil, nil, errors.New("上游不可用")
		}
		tools, err := connector.Tools(ctx)
		return connector, tools, err
	})
	sessions := session.NewMemoryStore()
	extractor := collection.NewExtractor([]string{"get_collections", "get_collection", "search"})
	normalizer := collection.NewNormalizer(nil)
	return New(llmClient, holder, sessions, repo, extractor, normalizer, opts...), sessions
}

func collectEvents(writer *stream.Writer) []stream.Event {
	writer.Close()
	var events []stream.Event
	for event := range writer.Events() {
		events = append(events, event)
	}
	return events
}

func kinds(events []stream.Event) []stream.Kind {
	out := make([]stream.Kind, 0, len(events))
	for _, event := range events {
		out = append(out, event.Kind)
	}
	return out
}

func TestRunSessionPlainReply(t *testing.T) {
	llmClient := &scriptedLLM{responses: []*llm.Response{{Content: "没有找到相关集合"}}}
	ag, sessions := newTestAgent(t, llmClient, nil, mysql.NewMemoryCollectionRepository())

	writer := stream.NewWriter("s1", nil)
	if err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "查一下"}, writer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := collectEvents(writer)
	if len(events) != 1 || events[0].Kind != stream.KindTerminal {
		t.Fatalf("expected single terminal event, got %v", kinds(events))
	}

	stored, err := sessions.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Terminal != session.TerminalCompleted {
		t.Fatalf("expected completed session, got %q", stored.Terminal)
	}
}

func TestRunSessionEmitsPreview(t *testing.T) {
	payload := `{"name":"EON MUN","image_url":"https://img.example/eon.png","chain_identifier":"ethereum"}`
	llmClient := &scriptedLLM{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_collections", Input: json.RawMessage(`{"query":"eon"}`)}}},
		{Content: "找到了 EON MUN"},
	}}
	connector := &stubConnector{outputs: map[string]string{"get_collections": payload}}
	ag, _ := newTestAgent(t, llmClient, connector, mysql.NewMemoryCollectionRepository())

	writer := stream.NewWriter("s1", nil)
	if err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "找 eon"}, writer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := collectEvents(writer)
	want := []stream.Kind{stream.KindToolCall, stream.KindToolResult, stream.KindPreviewCandidate, stream.KindTerminal}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("unexpected event kinds: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	var candidate collection.Candidate
	if err := json.Unmarshal(events[2].Payload, &candidate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Name != "EON MUN" || candidate.ImageURL != "https://img.example/eon.png" {
		t.Fatalf("unexpected candidate: %+v", candidate)
	}
}

func TestRunSessionMalformedPayloadSkipsPreview(t *testing.T) {
	llmClient := &scriptedLLM{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_collections", Input: json.RawMessage(`{}`)}}},
		{Content: "数据异常"},
	}}
	connector := &stubConnector{outputs: map[string]string{"get_collections": "{not json"}}
	ag, _ := newTestAgent(t, llmClient, connector, mysql.NewMemoryCollectionRepository())

	writer := stream.NewWriter("s1", nil)
	if err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "找"}, writer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, event := range collectEvents(writer) {
		if event.Kind == stream.KindPreviewCandidate {
			t.Fatalf("expected no preview event for malformed payload")
		}
	}
}

func TestRunSessionSavePersistsBeforeTerminal(t *testing.T) {
	saveInput := `{"collection":{"name":"EON MUN","address":"0x00000000219ab540356cbb839cbe05303d7705fa","chain":"ethereum"}}`
	llmClient := &scriptedLLM{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "save_collection", Input: json.RawMessage(saveInput)}}},
	}}
	repo := mysql.NewMemoryCollectionRepository()
	ag, sessions := newTestAgent(t, llmClient, &stubConnector{}, repo)

	writer := stream.NewWriter("s1", nil)
	if err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "保存"}, writer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := collectEvents(writer)
	got := kinds(events)
	if len(got) != 2 || got[0] != stream.KindSavedID || got[1] != stream.KindTerminal {
		t.Fatalf("expected saved-id then terminal, got %v", got)
	}

	var saved stream.SavedPayload
	if err := json.Unmarshal(events[0].Payload, &saved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, err := repo.Get(context.Background(), saved.CollectionID)
	if err != nil {
		t.Fatalf("已发布的集合标识必须可查询: %v", err)
	}
	if record.ID != saved.CollectionID {
		t.Fatalf("unexpected record: %+v", record)
	}

	stored, err := sessions.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Terminal != session.TerminalCompleted {
		t.Fatalf("expected completed session, got %q", stored.Terminal)
	}
}

type failingRepo struct{}

func (f *failingRepo) Save(ctx context.Context, data json.RawMessage) (string, error) {
	return "", errors.New("数据库不可用")
}

func (f *failingRepo) Get(ctx context.Context, id string) (*mysql.CollectionRecord, error) {
	return nil, mysql.ErrNotFound
}

func TestRunSessionPersistenceFailureEndsErrored(t *testing.T) {
	saveInput := `{"collection":{"name":"EON MUN","address":"0x00000000219ab540356cbb839cbe05303d7705fa","chain":"ethereum"}}`
	llmClient := &scriptedLLM{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "save_collection", Input: json.RawMessage(saveInput)}}},
	}}
	ag, _ := newTestAgent(t, llmClient, &stubConnector{}, &failingRepo{})

	writer := stream.NewWriter("s1", nil)
	err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "保存"}, writer)
	if err == nil {
		t.Fatalf("expected persistence error")
	}

	events := collectEvents(writer)
	if len(events) != 1 || events[0].Kind != stream.KindTerminal {
		t.Fatalf("expected single terminal event, got %v", kinds(events))
	}
	var terminal stream.TerminalPayload
	if err := json.Unmarshal(events[0].Payload, &terminal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terminal.Status != string(session.TerminalErrored) {
		t.Fatalf("expected errored terminal, got %q", terminal.Status)
	}
}

func TestRunSessionUpstreamFailureContinues(t *testing.T) {
	llmClient := &scriptedLLM{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_collections", Input: json.RawMessage(`{}`)}}},
		{Content: "上游暂时不可用"},
	}}
	connector := &stubConnector{err: errors.New("连接被重置")}
	ag, _ := newTestAgent(t, llmClient, connector, mysql.NewMemoryCollectionRepository())

	writer := stream.NewWriter("s1", nil)
	if err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "找"}, writer); err != nil {
		t.Fatalf("tool failure must not end the session: %v", err)
	}

	events := collectEvents(writer)
	var sawError bool
	for _, event := range events {
		if event.Kind != stream.KindToolResult {
			continue
		}
		var result stream.ToolResultPayload
		if err := json.Unmarshal(event.Payload, &result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sawError = result.IsError
	}
	if !sawError {
		t.Fatalf("expected an error tool result, got %v", kinds(events))
	}
	if events[len(events)-1].Kind != stream.KindTerminal {
		t.Fatalf("expected terminal event at the end, got %v", kinds(events))
	}
}

func TestRunSessionStepBudget(t *testing.T) {
	loop := &llm.Response{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_collections", Input: json.RawMessage(`{}`)}}}
	llmClient := &scriptedLLM{responses: []*llm.Response{loop, loop, loop, loop}}
	connector := &stubConnector{outputs: map[string]string{"get_collections": `{"name":"x"}`}}
	ag, _ := newTestAgent(t, llmClient, connector, mysql.NewMemoryCollectionRepository(), WithMaxSteps(2))

	writer := stream.NewWriter("s1", nil)
	if err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "找"}, writer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if llmClient.calls != 2 {
		t.Fatalf("expected 2 llm calls, got %d", llmClient.calls)
	}
	events := collectEvents(writer)
	if events[len(events)-1].Kind != stream.KindTerminal {
		t.Fatalf("expected terminal event after budget, got %v", kinds(events))
	}
}

func TestRunSessionTimeout(t *testing.T) {
	llmClient := &scriptedLLM{wait: 100 * time.Millisecond}
	ag, _ := newTestAgent(t, llmClient, nil, mysql.NewMemoryCollectionRepository(), WithSessionTimeout(10*time.Millisecond))

	writer := stream.NewWriter("s1", nil)
	err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1", Message: "找"}, writer)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestRunSessionValidation(t *testing.T) {
	ag, _ := newTestAgent(t, &scriptedLLM{}, nil, mysql.NewMemoryCollectionRepository())
	writer := stream.NewWriter("s1", nil)
	if err := ag.RunSession(context.Background(), SessionRequest{SessionID: "s1"}, writer); err == nil {
		t.Fatalf("expected validation error for empty message")
	}
}
