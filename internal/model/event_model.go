package model

import (
	"time"
)

// EventModel 账本事件原始记录
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EventId    string    `json:"event_id" gorm:"uniqueIndex;not null"` // uuid
	Seq        uint64    `json:"seq" gorm:"uniqueIndex;not null"`
	CampaignId uint64    `json:"campaign_id" gorm:"index"`
	EventType  string    `json:"event_type" gorm:"index;not null"`
	Actor      string    `json:"actor"`
	Data       string    `json:"data" gorm:"type:text"`
	EventTime  time.Time `json:"event_time"`
	Processed  bool      `json:"processed" gorm:"index;default:false"`
	Published  bool      `json:"published" gorm:"default:false"`

	Attempts   int    `json:"attempts" gorm:"default:0"`              // 处理失败次数
	LastError  string `json:"last_error" gorm:"type:text"`            // 最近一次处理失败原因
	DeadLetter bool   `json:"dead_letter" gorm:"index;default:false"` // 超过重试上限，不再处理
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}
