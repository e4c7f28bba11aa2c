package chain

import (
	"os"
	"path/filepath"
	"testing"

	"NFTScout/internal/config"
)

func TestRegistryCanonical(t *testing.T) {
	reg, err := NewRegistry(config.ChainsConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]string{
		"eth":          "ethereum",
		"ETH":          "ethereum",
		"mainnet":      "ethereum",
		"matic":        "polygon",
		"arbitrum-one": "arbitrum",
		"solana":       "solana",
		// 未知标识小写后原样返回。
		"FooChain": "foochain",
	}
	for input, want := range cases {
		if got := reg.Canonical(input); got != want {
			t.Fatalf("Canonical(%q) = %q, want %q", input, got, want)
		}
	}
	if reg.Canonical("  ") != "" {
		t.Fatalf("空白输入应归一为空串")
	}
}

func TestRegistryAddressNormalization(t *testing.T) {
	reg, err := NewRegistry(config.ChainsConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// EVM 链地址做 EIP-55 校验和归一。
	got := reg.NormalizeAddress("eth", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	if got != "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2" {
		t.Fatalf("unexpected address: %q", got)
	}
	// 非 EVM 链原样返回。
	if got := reg.NormalizeAddress("solana", "So11111111111111111111111111111111111111112"); got != "So11111111111111111111111111111111111111112" {
		t.Fatalf("非 EVM 地址不应被改写: %q", got)
	}
	// 形态不合法的地址原样返回。
	if got := reg.NormalizeAddress("ethereum", "not-an-address"); got != "not-an-address" {
		t.Fatalf("非法地址不应被改写: %q", got)
	}
	if got := reg.NormalizeAddress("ethereum", ""); got != "" {
		t.Fatalf("空地址应返回空串: %q", got)
	}
}

func TestRegistryIsEVM(t *testing.T) {
	reg, err := NewRegistry(config.ChainsConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reg.IsEVM("matic") {
		t.Fatalf("polygon 应是 EVM 链")
	}
	if reg.IsEVM("solana") || reg.IsEVM("unknown") {
		t.Fatalf("非 EVM 链判定错误")
	}
}

func TestRegistryConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	content := `chains:
  zora:
    type: evm
    aliases: ["zora-mainnet"]
  ethereum:
    type: evm
    aliases: ["eth", "homestead", "l1"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reg, err := NewRegistry(config.ChainsConfig{Definitions: path, DefaultChain: "polygon"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := reg.Canonical("zora-mainnet"); got != "zora" {
		t.Fatalf("配置定义未生效: %q", got)
	}
	if got := reg.Canonical("l1"); got != "ethereum" {
		t.Fatalf("配置追加的别名未生效: %q", got)
	}
	if got := reg.Default(); got != "polygon" {
		t.Fatalf("unexpected default chain: %q", got)
	}
}

func TestRegistryDefaultFallback(t *testing.T) {
	reg, err := NewRegistry(config.ChainsConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reg.Default(); got != "ethereum" {
		t.Fatalf("unexpected default chain: %q", got)
	}
}

func TestLoadDefinitionsMissingFile(t *testing.T) {
	if _, err := LoadDefinitions("/nonexistent/chains.yaml"); err == nil {
		t.Fatalf("缺失的配置文件应报错")
	}
	defs, err := LoadDefinitions("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defs.Chains == nil || len(defs.Chains) != 0 {
		t.Fatalf("空路径应返回空定义: %+v", defs)
	}
}
