package model

import (
	"time"
)

// SettlementRecordModel 结算记录，对应一次成功提取
type SettlementRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId     uint64    `json:"campaign_id" gorm:"uniqueIndex;not null"` // 每个活动至多结算一次
	Creator        string    `json:"creator" gorm:"not null"`
	TotalAmount    string    `json:"total_amount" gorm:"not null"`    // 募集总额
	PlatformFee    string    `json:"platform_fee" gorm:"default:'0'"` // 平台手续费
	CreatorAmount  string    `json:"creator_amount" gorm:"not null"`  // 创建者获得金额
	FeeRecipient   string    `json:"fee_recipient"`
	Seq            uint64    `json:"seq" gorm:"uniqueIndex"`
	SettlementTime time.Time `json:"settlement_time"`
}

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
