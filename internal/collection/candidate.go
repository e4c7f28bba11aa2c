package collection

import "encoding/json"

// Candidate 是规范化后的集合候选记录，尚未持久化。
// 除 Name/Address/Chain 外的字段全部可选；Raw 保留原始载荷以供审计。
type Candidate struct {
	Name           string          `json:"name,omitempty"`
	Address        string          `json:"address,omitempty"`
	Chain          string          `json:"chain,omitempty"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	BannerImageURL string          `json:"bannerImageUrl,omitempty"`
	ExternalURL    string          `json:"externalUrl,omitempty"`
	Description    string          `json:"description,omitempty"`
	Standard       string          `json:"standard,omitempty"`
	Stats          *Stats          `json:"stats,omitempty"`
	CreatorFees    []CreatorFee    `json:"creatorFees,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// Stats 汇总上游提供的集合统计信息，只做形态归一，不校验数值。
type Stats struct {
	TotalSupply *float64 `json:"totalSupply,omitempty"`
	OwnerCount  *float64 `json:"ownerCount,omitempty"`
	Sales       *float64 `json:"sales,omitempty"`
	VolumeUSD   *float64 `json:"volumeUsd,omitempty"`
}

// CreatorFee 描述一条创作者分成配置。
type CreatorFee struct {
	Recipient      string  `json:"recipient"`
	FeeBasisPoints float64 `json:"feeBasisPoints"`
}

// Complete 判断候选记录是否具备确认保存所需的最小字段。
func (c *Candidate) Complete() bool {
	if c == nil {
		return false
	}
	return c.Name != "" && c.Address != "" && c.Chain != ""
}
