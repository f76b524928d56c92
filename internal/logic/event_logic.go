package logic

import (
	"errors"
	"fmt"

	"github.com/blues/cfl/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventLogic 事件业务逻辑
type EventLogic struct {
	db *gorm.DB
}

// NewEventLogic 创建事件业务逻辑
func NewEventLogic(db *gorm.DB) *EventLogic {
	return &EventLogic{db: db}
}

// CreateEvents 批量写入事件，已存在的序号跳过
func (e *EventLogic) CreateEvents(events []model.EventModel) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		if err := e.validateEvent(&events[i]); err != nil {
			return err
		}
		if events[i].EventId == "" {
			events[i].EventId = uuid.NewString()
		}
	}
	if err := e.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&events).Error; err != nil {
		return fmt.Errorf("创建事件记录失败: %w", err)
	}
	return nil
}

// GetEvents 获取事件列表，campaignId 为 0 或 eventType 为空时不过滤
func (e *EventLogic) GetEvents(campaignId uint64, eventType string, page, pageSize int) ([]model.EventModel, int64, error) {
	var events []model.EventModel
	var total int64

	query := e.db.Model(&model.EventModel{})
	if campaignId > 0 {
		query = query.Where("campaign_id = ?", campaignId)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取事件总数失败: %w", err)
	}

	offset, limit := normalizePage(page, pageSize)
	if err := query.Offset(offset).Limit(limit).Order("seq DESC").Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("获取事件列表失败: %w", err)
	}
	return events, total, nil
}

// GetEventBySeq 根据账本序号获取事件
func (e *EventLogic) GetEventBySeq(seq uint64) (*model.EventModel, error) {
	var event model.EventModel
	if err := e.db.Where("seq = ?", seq).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("获取事件失败: %w", err)
	}
	return &event, nil
}

// GetUnprocessedEvents 获取未处理的事件，按序号正序，死信事件除外
func (e *EventLogic) GetUnprocessedEvents(limit int) ([]model.EventModel, error) {
	var events []model.EventModel
	if err := e.db.Where("processed = ? AND dead_letter = ?", false, false).
		Order("seq ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取未处理事件失败: %w", err)
	}
	return events, nil
}

// GetUnpublishedEvents 获取未发布到消息队列的事件
func (e *EventLogic) GetUnpublishedEvents(limit int) ([]model.EventModel, error) {
	var events []model.EventModel
	if err := e.db.Where("published = ?", false).
		Order("seq ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取未发布事件失败: %w", err)
	}
	return events, nil
}

// MarkProcessed 标记事件已处理
func (e *EventLogic) MarkProcessed(ids []int64) error {
	return e.mark(ids, "processed")
}

// MarkPublished 标记事件已发布
func (e *EventLogic) MarkPublished(ids []int64) error {
	return e.mark(ids, "published")
}

func (e *EventLogic) mark(ids []int64, column string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := e.db.Model(&model.EventModel{}).Where("id IN ?", ids).Update(column, true).Error; err != nil {
		return fmt.Errorf("更新事件%s状态失败: %w", column, err)
	}
	return nil
}

// RecordFailure 记录一次处理失败，失败次数达到 maxAttempts 时转为死信。
// 返回事件是否已成为死信。
func (e *EventLogic) RecordFailure(event *model.EventModel, cause error, maxAttempts int) (bool, error) {
	attempts := event.Attempts + 1
	dead := maxAttempts > 0 && attempts >= maxAttempts
	err := e.db.Model(&model.EventModel{}).Where("id = ?", event.Id).Updates(map[string]interface{}{
		"attempts":    attempts,
		"last_error":  cause.Error(),
		"dead_letter": dead,
	}).Error
	if err != nil {
		return false, fmt.Errorf("记录事件处理失败: %w", err)
	}
	event.Attempts = attempts
	event.LastError = cause.Error()
	event.DeadLetter = dead
	return dead, nil
}

// GetDeadLetterEvents 获取死信事件
func (e *EventLogic) GetDeadLetterEvents(limit int) ([]model.EventModel, error) {
	_, limit = normalizePage(1, limit)
	var events []model.EventModel
	if err := e.db.Where("dead_letter = ?", true).
		Order("seq ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取死信事件失败: %w", err)
	}
	return events, nil
}

// RetryDeadLetter 清除死信标记，事件回到待处理队列
func (e *EventLogic) RetryDeadLetter(seq uint64) error {
	result := e.db.Model(&model.EventModel{}).
		Where("seq = ? AND dead_letter = ?", seq, true).
		Updates(map[string]interface{}{"dead_letter": false, "attempts": 0})
	if result.Error != nil {
		return fmt.Errorf("重置死信事件失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// GetLastSeq 已落库的最大事件序号
func (e *EventLogic) GetLastSeq() (uint64, error) {
	var last model.EventModel
	err := e.db.Order("seq DESC").First(&last).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("获取最大事件序号失败: %w", err)
	}
	return last.Seq, nil
}

// GetEventStatistics 获取事件统计信息
func (e *EventLogic) GetEventStatistics(campaignId uint64) (map[string]interface{}, error) {
	var stats struct {
		TotalEvents      int64
		ProcessedEvents  int64
		DeadLetterEvents int64
		PendingEvents    int64
	}

	scope := func() *gorm.DB {
		query := e.db.Model(&model.EventModel{})
		if campaignId > 0 {
			query = query.Where("campaign_id = ?", campaignId)
		}
		return query
	}

	if err := scope().Count(&stats.TotalEvents).Error; err != nil {
		return nil, fmt.Errorf("获取总事件数失败: %w", err)
	}
	if err := scope().Where("processed = ?", true).Count(&stats.ProcessedEvents).Error; err != nil {
		return nil, fmt.Errorf("获取已处理事件数失败: %w", err)
	}
	if err := scope().Where("dead_letter = ?", true).Count(&stats.DeadLetterEvents).Error; err != nil {
		return nil, fmt.Errorf("获取死信事件数失败: %w", err)
	}
	stats.PendingEvents = stats.TotalEvents - stats.ProcessedEvents - stats.DeadLetterEvents

	return map[string]interface{}{
		"total_events":       stats.TotalEvents,
		"processed_events":   stats.ProcessedEvents,
		"dead_letter_events": stats.DeadLetterEvents,
		"pending_events":     stats.PendingEvents,
	}, nil
}

// validateEvent 验证事件数据
func (e *EventLogic) validateEvent(event *model.EventModel) error {
	if event.Seq == 0 {
		return errors.New("事件序号不能为空")
	}
	if event.EventType == "" {
		return errors.New("事件类型不能为空")
	}
	return nil
}
