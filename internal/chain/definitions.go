package chain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions 对应 configs/chains.yaml 的顶层结构。
type Definitions struct {
	Chains map[string]Definition `yaml:"chains"`
}

// Definition 描述一条链的元数据。
type Definition struct {
	// Type 标记地址体系，evm 链会执行 EIP-55 校验和规范化。
	Type string `yaml:"type"`
	// Aliases 列出上游数据中可能出现的别名写法。
	Aliases     []string `yaml:"aliases"`
	Description string   `yaml:"description"`
}

// LoadDefinitions 解析链元数据 YAML 文件。空路径返回空定义。
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{Chains: map[string]Definition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]Definition{}
	}
	return defs, nil
}
