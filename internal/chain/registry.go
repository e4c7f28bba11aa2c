package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"NFTScout/internal/config"
)

// Registry 将上游数据中五花八门的链写法归一到规范标识。
// 注册表在进程启动时构建，之后只读，可被多个会话并发使用。
type Registry struct {
	defaultChain string
	canonical    map[string]string
	evm          map[string]bool
}

// builtinDefinitions 覆盖 OpenSea 数据中最常见的链写法，
// 配置文件中的定义会在其基础上追加或覆盖。
var builtinDefinitions = map[string]Definition{
	"ethereum": {Type: "evm", Aliases: []string{"eth", "mainnet", "homestead"}},
	"polygon":  {Type: "evm", Aliases: []string{"matic"}},
	"base":     {Type: "evm"},
	"arbitrum": {Type: "evm", Aliases: []string{"arbitrum-one"}},
	"optimism": {Type: "evm"},
	"solana":   {Type: "sol"},
}

// NewRegistry 加载链定义并构建别名索引。
func NewRegistry(cfg config.ChainsConfig) (*Registry, error) {
	defs, err := LoadDefinitions(cfg.Definitions)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		defaultChain: strings.ToLower(strings.TrimSpace(cfg.DefaultChain)),
		canonical:    make(map[string]string),
		evm:          make(map[string]bool),
	}
	for name, def := range builtinDefinitions {
		reg.register(name, def)
	}
	for name, def := range defs.Chains {
		reg.register(strings.ToLower(strings.TrimSpace(name)), def)
	}
	return reg, nil
}

func (r *Registry) register(name string, def Definition) {
	if name == "" {
		return
	}
	r.canonical[name] = name
	for _, alias := range def.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" {
			r.canonical[alias] = name
		}
	}
	if strings.EqualFold(strings.TrimSpace(def.Type), "evm") {
		r.evm[name] = true
	}
}

// Canonical 返回链标识的规范写法。未知标识小写后原样返回，
// 规范化只做形态统一，不校验链是否真实存在。
func (r *Registry) Canonical(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return ""
	}
	if r == nil {
		return identifier
	}
	if name, ok := r.canonical[identifier]; ok {
		return name
	}
	return identifier
}

// Default 返回默认链标识。
func (r *Registry) Default() string {
	if r == nil || r.defaultChain == "" {
		return "ethereum"
	}
	return r.defaultChain
}

// IsEVM 判断规范链标识是否使用以太坊地址体系。
func (r *Registry) IsEVM(identifier string) bool {
	if r == nil {
		return false
	}
	return r.evm[r.Canonical(identifier)]
}

// NormalizeAddress 对 EVM 链地址做 EIP-55 校验和规范化。
// 非 EVM 链或形态不合法的地址原样返回，地址有效性不在本层校验。
func (r *Registry) NormalizeAddress(identifier, address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if !r.IsEVM(identifier) {
		return address
	}
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}
