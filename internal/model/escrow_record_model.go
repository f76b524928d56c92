package model

import (
	"time"
)

// EscrowRecordModel ICO 托管池代币流水
type EscrowRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId uint64     `json:"campaign_id" gorm:"index;not null"`
	Address    string     `json:"address" gorm:"not null"`
	Kind       EscrowKind `json:"kind" gorm:"not null"`
	Tokens     string     `json:"tokens" gorm:"not null"`
	Seq        uint64     `json:"seq" gorm:"uniqueIndex"`
	EventTime  time.Time  `json:"event_time"`
}

// EscrowKind 托管流水类型
type EscrowKind string

const (
	EscrowKindDeposit EscrowKind = "deposit" // 创建者存入
	EscrowKindClaim   EscrowKind = "claim"   // 贡献者领取
	EscrowKindUnsold  EscrowKind = "unsold"  // 创建者取回未售出
)

// TableName 自定义表名
func (EscrowRecordModel) TableName() string {
	return "escrow_record"
}
