package collection

import "strings"

// ToolResult 是提取器的输入：一次工具调用的名称与文本输出。
type ToolResult struct {
	Name string
	Text string
}

// Extractor 从一轮工具调用结果中挑选值得规范化的载荷。
// 只认登记过的数据类工具；命中多个时取第一个，后续结果被丢弃。
// 提取不会失败，没有命中就是唯一的"失败"信号。
type Extractor struct {
	names map[string]struct{}
}

// NewExtractor 登记数据类工具名称。
func NewExtractor(dataTools []string) *Extractor {
	names := make(map[string]struct{}, len(dataTools))
	for _, name := range dataTools {
		name = strings.TrimSpace(name)
		if name != "" {
			names[name] = struct{}{}
		}
	}
	return &Extractor{names: names}
}

// Extract 返回本轮第一个数据类工具结果的文本载荷。
// 第一个命中的条目即被选定，即使其载荷为空也不会继续向后找。
func (e *Extractor) Extract(results []ToolResult) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, result := range results {
		if _, ok := e.names[result.Name]; !ok {
			continue
		}
		if strings.TrimSpace(result.Text) == "" {
			return "", false
		}
		return result.Text, true
	}
	return "", false
}

// IsDataTool 判断工具名称是否在登记的集合中。
func (e *Extractor) IsDataTool(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.names[name]
	return ok
}
