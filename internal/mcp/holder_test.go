package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type stubConnector struct{}

func (stubConnector) Tools(context.Context) ([]Tool, error) { return nil, nil }

func (stubConnector) Call(context.Context, string, json.RawMessage) (*Result, error) {
	return &Result{}, nil
}

func TestHolderInitializesOnce(t *testing.T) {
	var constructed atomic.Int32
	holder := NewHolder(func(ctx context.Context) (Connector, []Tool, error) {
		constructed.Add(1)
		return stubConnector{}, []Tool{{Name: "search"}}, nil
	})

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, tools, err := holder.Get(context.Background())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if conn == nil || len(tools) != 1 {
				t.Errorf("unexpected result: conn=%v tools=%d", conn, len(tools))
			}
		}()
	}
	wg.Wait()

	if got := constructed.Load(); got != 1 {
		t.Fatalf("工厂应只被调用一次: %d", got)
	}
}

func TestHolderRetriesAfterFailure(t *testing.T) {
	var attempts atomic.Int32
	holder := NewHolder(func(ctx context.Context) (Connector, []Tool, error) {
		if attempts.Add(1) == 1 {
			return nil, nil, errors.New("上游不可达")
		}
		return stubConnector{}, nil, nil
	})

	if _, _, err := holder.Get(context.Background()); err == nil {
		t.Fatalf("首次失败应返回错误")
	}
	// 失败不缓存，下一次使用会重试工厂。
	if _, _, err := holder.Get(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 成功之后结果被缓存。
	if _, _, err := holder.Get(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("unexpected attempts: %d", got)
	}
}

func TestHolderReset(t *testing.T) {
	var attempts atomic.Int32
	holder := NewHolder(func(ctx context.Context) (Connector, []Tool, error) {
		attempts.Add(1)
		return stubConnector{}, nil, nil
	})

	if _, _, err := holder.Get(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	holder.Reset()
	if _, _, err := holder.Get(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("Reset 之后应重新构造: %d", got)
	}
}
