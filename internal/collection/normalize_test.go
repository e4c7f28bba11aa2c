package collection

import (
	"encoding/json"
	"testing"

	"NFTScout/internal/chain"
	"NFTScout/internal/config"
	xerrors "NFTScout/internal/errors"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	registry, err := chain.NewRegistry(config.ChainsConfig{})
	if err != nil {
		t.Fatalf("构建链注册表失败: %v", err)
	}
	return NewNormalizer(registry)
}

func TestNormalizeSingleCollection(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{
		"name": "EON MUN",
		"contract_address": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		"chain_identifier": "eth",
		"image_url": "https://img.example/eon.png",
		"banner_image_url": "https://img.example/banner.png",
		"external_url": "https://eon.example",
		"token_standard": "erc721"
	}`

	candidate, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Name != "EON MUN" {
		t.Fatalf("unexpected name: %q", candidate.Name)
	}
	if candidate.Chain != "ethereum" {
		t.Fatalf("别名未归一: %q", candidate.Chain)
	}
	if candidate.Address != "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2" {
		t.Fatalf("地址未做校验和归一: %q", candidate.Address)
	}
	if candidate.ImageURL != "https://img.example/eon.png" || candidate.BannerImageURL != "https://img.example/banner.png" {
		t.Fatalf("图片字段缺失: %+v", candidate)
	}
	if candidate.Standard != "erc721" {
		t.Fatalf("unexpected standard: %q", candidate.Standard)
	}
	if !candidate.Complete() {
		t.Fatalf("候选记录应当完整: %+v", candidate)
	}
}

func TestNormalizeCollectionWrapper(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{"collection": {"name": "Wrapped", "address": "abc", "chain": "solana"}}`
	candidate, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Name != "Wrapped" || candidate.Chain != "solana" {
		t.Fatalf("unexpected candidate: %+v", candidate)
	}
	// 非 EVM 链不做地址归一。
	if candidate.Address != "abc" {
		t.Fatalf("非 EVM 地址应原样保留: %q", candidate.Address)
	}
}

func TestNormalizeListVariant(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{"collections": [{"name": "First", "address": "0x1", "chain": "polygon"}, {"name": "Second"}]}`
	candidate, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Name != "First" {
		t.Fatalf("应选中列表中的第一个元素: %+v", candidate)
	}
	if candidate.Chain != "polygon" {
		t.Fatalf("unexpected chain: %q", candidate.Chain)
	}
}

func TestNormalizeSearchVariant(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{"results": [{"collection_name": "Found", "contractAddress": "0x2", "chain": {"identifier": "matic"}}]}`
	candidate, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Name != "Found" || candidate.Address != "0x2" {
		t.Fatalf("unexpected candidate: %+v", candidate)
	}
	if candidate.Chain != "polygon" {
		t.Fatalf("别名未归一: %q", candidate.Chain)
	}
}

func TestNormalizeVariantPriority(t *testing.T) {
	n := newTestNormalizer(t)

	// 同时满足多个形态时，单集合形态优先生效。
	payload := `{"name": "Top", "collections": [{"name": "Listed"}]}`
	candidate, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Name != "Top" {
		t.Fatalf("应优先匹配单集合形态: %+v", candidate)
	}
}

func TestNormalizeNestedContractPath(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{"name": "Nested", "primary_asset_contracts": [{"address": "0x3"}], "chain": "base"}`
	candidate, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Address != "0x3" {
		t.Fatalf("数组路径取值失败: %+v", candidate)
	}
}

func TestNormalizeStatsAndFees(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{
		"name": "Rich",
		"address": "0x4",
		"chain": "ethereum",
		"stats": {"total_supply": 10000, "num_owners": 321, "sales": 12, "volume": {"usd": 45.5}},
		"fees": {"creatorFees": [{"recipient": "0xabc", "feeBasisPoints": 250}]}
	}`
	candidate, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Stats == nil {
		t.Fatalf("统计信息缺失")
	}
	if *candidate.Stats.TotalSupply != 10000 || *candidate.Stats.OwnerCount != 321 {
		t.Fatalf("unexpected stats: %+v", candidate.Stats)
	}
	if *candidate.Stats.VolumeUSD != 45.5 {
		t.Fatalf("unexpected volume: %v", *candidate.Stats.VolumeUSD)
	}
	if len(candidate.CreatorFees) != 1 || candidate.CreatorFees[0].FeeBasisPoints != 250 {
		t.Fatalf("unexpected fees: %+v", candidate.CreatorFees)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer(t)

	payload := `{"name": "EON MUN", "address": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "chain": "eth", "image_url": "https://img.example/eon.png"}`
	first, err := n.Normalize(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := n.Normalize(string(encoded))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.Name != first.Name || second.Address != first.Address || second.Chain != first.Chain || second.ImageURL != first.ImageURL {
		t.Fatalf("归一化不是幂等的: first=%+v second=%+v", first, second)
	}
}

func TestNormalizeFailures(t *testing.T) {
	n := newTestNormalizer(t)

	cases := []struct {
		name    string
		payload string
	}{
		{name: "空载荷", payload: "   "},
		{name: "非法 JSON", payload: "{not json"},
		{name: "无匹配形态", payload: `{"tokens": [1, 2, 3]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(tc.payload)
			if err == nil {
				t.Fatalf("expected error")
			}
			if xerrors.CodeOf(err) != xerrors.CodeNormalization {
				t.Fatalf("unexpected code: %v", xerrors.CodeOf(err))
			}
		})
	}
}

func TestNormalizeCandidateFromMap(t *testing.T) {
	n := newTestNormalizer(t)

	candidate, err := n.NormalizeCandidate(map[string]any{
		"name":    "Direct",
		"address": "0x5",
		"chain":   "ETHEREUM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Chain != "ethereum" {
		t.Fatalf("unexpected chain: %q", candidate.Chain)
	}
}

func TestNormalizeWithoutRegistryLowercasesChain(t *testing.T) {
	n := NewNormalizer(nil)

	candidate, err := n.Normalize(`{"name": "Bare", "address": "0x6", "chain": "Ethereum"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.Chain != "ethereum" {
		t.Fatalf("unexpected chain: %q", candidate.Chain)
	}
}
