package collection

import (
	"encoding/json"
	"strconv"
	"strings"

	"NFTScout/internal/chain"
	xerrors "NFTScout/internal/errors"
)

// Normalizer 将上游工具返回的任意 JSON 载荷归一成 Candidate。
// 纯计算，无 I/O；所有失败都是软失败，绝不中断所在会话。
type Normalizer struct {
	chains *chain.Registry
}

// NewNormalizer 创建 Normalizer。chains 允许为空，此时链标识只做小写处理。
func NewNormalizer(chains *chain.Registry) *Normalizer {
	return &Normalizer{chains: chains}
}

// variant 描述一种具名的载荷形态。matches 只做结构判断，
// root 负责从载荷中取出承载集合字段的对象。
type variant struct {
	name    string
	matches func(doc map[string]any) bool
	root    func(doc map[string]any) map[string]any
}

// variants 按优先级排列，第一个结构匹配的形态被选中。
var variants = []variant{
	{
		name: "single-collection",
		matches: func(doc map[string]any) bool {
			root := unwrapCollection(doc)
			return hasAnyKey(root, "name", "slug", "address", "contract_address", "contractAddress")
		},
		root: unwrapCollection,
	},
	{
		name: "collection-list",
		matches: func(doc map[string]any) bool {
			return firstObject(doc, "collections") != nil
		},
		root: func(doc map[string]any) map[string]any {
			return unwrapCollection(firstObject(doc, "collections"))
		},
	},
	{
		name: "search-result",
		matches: func(doc map[string]any) bool {
			return firstObject(doc, "results") != nil
		},
		root: func(doc map[string]any) map[string]any {
			return unwrapCollection(firstObject(doc, "results"))
		},
	},
}

// fieldAlias 把某个规范字段对应的各种上游写法列成显式的表。
// 路径支持点号展开，数字段表示数组下标。
type fieldAlias struct {
	canonical string
	paths     []string
}

var aliasTable = []fieldAlias{
	{canonical: "name", paths: []string{"name", "collection_name"}},
	{canonical: "address", paths: []string{"address", "contract_address", "contractAddress", "primary_asset_contracts.0.address"}},
	{canonical: "chain", paths: []string{"chain", "chain.identifier", "chain_identifier"}},
	{canonical: "imageUrl", paths: []string{"imageUrl", "image_url"}},
	{canonical: "bannerImageUrl", paths: []string{"bannerImageUrl", "banner_image_url"}},
	{canonical: "externalUrl", paths: []string{"externalUrl", "external_url"}},
	{canonical: "description", paths: []string{"description"}},
	{canonical: "standard", paths: []string{"standard", "token_standard"}},
}

// Normalize 解析并归一一段文本 JSON 载荷。
// 解析失败或没有任何形态匹配时返回 NORMALIZATION_FAILED，调用方应记录后继续。
func (n *Normalizer) Normalize(payload string) (*Candidate, error) {
	raw := []byte(strings.TrimSpace(payload))
	if len(raw) == 0 {
		return nil, xerrors.New(xerrors.CodeNormalization, "载荷为空")
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNormalization, err, "载荷不是合法的 JSON 对象")
	}

	var root map[string]any
	for _, v := range variants {
		if v.matches(doc) {
			root = v.root(doc)
			break
		}
	}
	if root == nil {
		return nil, xerrors.New(xerrors.CodeNormalization, "没有匹配的载荷形态")
	}

	candidate := &Candidate{Raw: json.RawMessage(raw)}
	for _, alias := range aliasTable {
		value := lookupString(root, alias.paths)
		if value == "" {
			continue
		}
		switch alias.canonical {
		case "name":
			candidate.Name = value
		case "address":
			candidate.Address = value
		case "chain":
			candidate.Chain = value
		case "imageUrl":
			candidate.ImageURL = value
		case "bannerImageUrl":
			candidate.BannerImageURL = value
		case "externalUrl":
			candidate.ExternalURL = value
		case "description":
			candidate.Description = value
		case "standard":
			candidate.Standard = value
		}
	}

	candidate.Stats = normalizeStats(root)
	candidate.CreatorFees = normalizeCreatorFees(root)

	if n != nil && n.chains != nil && candidate.Chain != "" {
		candidate.Chain = n.chains.Canonical(candidate.Chain)
		candidate.Address = n.chains.NormalizeAddress(candidate.Chain, candidate.Address)
	} else {
		candidate.Chain = strings.ToLower(candidate.Chain)
	}

	return candidate, nil
}

// NormalizeCandidate 对已是对象形式的载荷做归一，供显式保存路径复用。
func (n *Normalizer) NormalizeCandidate(data map[string]any) (*Candidate, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNormalization, err, "序列化载荷失败")
	}
	return n.Normalize(string(encoded))
}

// unwrapCollection 解开可能存在的 collection 包装层。
func unwrapCollection(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	if inner, ok := doc["collection"].(map[string]any); ok {
		return inner
	}
	return doc
}

func hasAnyKey(doc map[string]any, keys ...string) bool {
	if doc == nil {
		return false
	}
	for _, key := range keys {
		if _, ok := doc[key]; ok {
			return true
		}
	}
	return false
}

// firstObject 返回 doc[key] 数组中的第一个对象元素，不存在时返回 nil。
func firstObject(doc map[string]any, key string) map[string]any {
	list, ok := doc[key].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil
	}
	return first
}

// lookupString 按路径优先级取第一个非空字符串值。
func lookupString(root map[string]any, paths []string) string {
	for _, path := range paths {
		value := lookupPath(root, path)
		text, ok := value.(string)
		if ok {
			text = strings.TrimSpace(text)
			if text != "" {
				return text
			}
		}
	}
	return ""
}

// lookupPath 支持 "chain.identifier" 与 "contracts.0.address" 形式的点号路径。
func lookupPath(root map[string]any, path string) any {
	var current any = root
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			current = node[part]
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}

func lookupNumber(root map[string]any, paths ...string) *float64 {
	for _, path := range paths {
		if value, ok := lookupPath(root, path).(float64); ok {
			v := value
			return &v
		}
	}
	return nil
}

func normalizeStats(root map[string]any) *Stats {
	statsNode, ok := root["stats"].(map[string]any)
	if !ok {
		return nil
	}
	stats := &Stats{
		TotalSupply: lookupNumber(statsNode, "totalSupply", "total_supply"),
		OwnerCount:  lookupNumber(statsNode, "ownerCount", "owner_count", "num_owners"),
		Sales:       lookupNumber(statsNode, "sales"),
		VolumeUSD:   lookupNumber(statsNode, "volumeUsd", "volume.usd"),
	}
	if stats.TotalSupply == nil && stats.OwnerCount == nil && stats.Sales == nil && stats.VolumeUSD == nil {
		return nil
	}
	return stats
}

func normalizeCreatorFees(root map[string]any) []CreatorFee {
	list, ok := lookupPath(root, "creatorFees").([]any)
	if !ok {
		list, ok = lookupPath(root, "fees.creatorFees").([]any)
	}
	if !ok {
		list, _ = lookupPath(root, "creator_fees").([]any)
	}
	if len(list) == 0 {
		return nil
	}
	fees := make([]CreatorFee, 0, len(list))
	for _, item := range list {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fee := CreatorFee{}
		if recipient, ok := node["recipient"].(string); ok {
			fee.Recipient = recipient
		}
		if points, ok := node["feeBasisPoints"].(float64); ok {
			fee.FeeBasisPoints = points
		} else if points, ok := node["fee_basis_points"].(float64); ok {
			fee.FeeBasisPoints = points
		}
		if fee.Recipient == "" && fee.FeeBasisPoints == 0 {
			continue
		}
		fees = append(fees, fee)
	}
	if len(fees) == 0 {
		return nil
	}
	return fees
}
