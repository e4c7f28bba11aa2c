package collection

import "testing"

func TestExtractFirstMatchWins(t *testing.T) {
	e := NewExtractor([]string{"get_collections", "search"})

	payload, ok := e.Extract([]ToolResult{
		{Name: "chat", Text: "闲聊输出"},
		{Name: "get_collections", Text: `{"name":"First"}`},
		{Name: "search", Text: `{"name":"Second"}`},
	})
	if !ok {
		t.Fatalf("expected a match")
	}
	if payload != `{"name":"First"}` {
		t.Fatalf("应选中第一个数据类结果: %q", payload)
	}
}

func TestExtractEmptyFirstMatchConsumesSlot(t *testing.T) {
	e := NewExtractor([]string{"get_collections", "search"})

	// 第一个命中的条目载荷为空，不再向后寻找其他结果。
	payload, ok := e.Extract([]ToolResult{
		{Name: "get_collections", Text: "   "},
		{Name: "search", Text: `{"name":"Later"}`},
	})
	if ok || payload != "" {
		t.Fatalf("空载荷应终止提取: payload=%q ok=%v", payload, ok)
	}
}

func TestExtractNoDataTools(t *testing.T) {
	e := NewExtractor([]string{"get_collections"})

	if _, ok := e.Extract([]ToolResult{{Name: "chat", Text: "hello"}}); ok {
		t.Fatalf("非数据类工具不应命中")
	}
	if _, ok := e.Extract(nil); ok {
		t.Fatalf("空结果集不应命中")
	}
}

func TestIsDataTool(t *testing.T) {
	e := NewExtractor([]string{"get_collections", " search "})

	if !e.IsDataTool("get_collections") || !e.IsDataTool("search") {
		t.Fatalf("登记的工具应被识别")
	}
	if e.IsDataTool("chat") {
		t.Fatalf("未登记的工具不应被识别")
	}
}
