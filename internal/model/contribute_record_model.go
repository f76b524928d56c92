package model

import (
	"time"
)

// ContributeRecordModel 贡献记录
type ContributeRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId uint64    `json:"campaign_id" gorm:"index;not null"`
	Address    string    `json:"address" gorm:"index;not null"`
	Amount     string    `json:"amount" gorm:"not null"`
	Tokens     string    `json:"tokens" gorm:"default:'0'"` // ICO 购得代币
	Seq        uint64    `json:"seq" gorm:"uniqueIndex"`    // 账本事件序号
	EventTime  time.Time `json:"event_time"`
}

// TableName 自定义表名
func (ContributeRecordModel) TableName() string {
	return "contribute_record"
}
