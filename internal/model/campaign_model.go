package model

import (
	"time"
)

// CampaignModel 活动投影，由定时任务从账本快照同步
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId uint64 `json:"campaign_id" gorm:"uniqueIndex;not null"`
	Creator    string `json:"creator" gorm:"index;not null"`

	// 募集信息，金额均为十进制字符串（最小单位）
	AssetKind       string    `json:"asset_kind" gorm:"not null"` // native, fungible
	Token           string    `json:"token"`
	Goal            string    `json:"goal" gorm:"not null"`
	Raised          string    `json:"raised" gorm:"default:'0'"`
	MinContribution string    `json:"min_contribution" gorm:"default:'0'"`
	Deadline        time.Time `json:"deadline" gorm:"not null"`

	WhitelistEnabled bool `json:"whitelist_enabled"`
	RewardEnabled    bool `json:"reward_enabled"`
	Approved         bool `json:"approved"`
	Cancelled        bool `json:"cancelled"`
	Withdrawn        bool `json:"withdrawn"`

	// ICO 信息
	IsIco         bool   `json:"is_ico"`
	SaleToken     string `json:"sale_token"`
	TokenPrice    string `json:"token_price"`
	TokensSold    string `json:"tokens_sold" gorm:"default:'0'"`
	TokensClaimed string `json:"tokens_claimed" gorm:"default:'0'"`
	Pool          string `json:"pool" gorm:"default:'0'"`

	Status CampaignStatus `json:"status" gorm:"index;default:'funding'"`
}

// CampaignStatus 活动状态
type CampaignStatus string

const (
	CampaignStatusPendingApproval CampaignStatus = "pending_approval" // 待审批
	CampaignStatusFunding         CampaignStatus = "funding"          // 募集中
	CampaignStatusCancelled       CampaignStatus = "cancelled"        // 已取消
	CampaignStatusSucceeded       CampaignStatus = "succeeded"        // 已达标
	CampaignStatusWithdrawn       CampaignStatus = "withdrawn"        // 已提取
	CampaignStatusFailed          CampaignStatus = "failed"           // 已失败
)

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
