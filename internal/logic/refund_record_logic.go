package logic

import (
	"errors"
	"fmt"

	"github.com/blues/cfl/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RefundRecordLogic 退款记录业务逻辑
type RefundRecordLogic struct {
	db *gorm.DB
}

// NewRefundRecordLogic 创建退款记录业务逻辑
func NewRefundRecordLogic(db *gorm.DB) *RefundRecordLogic {
	return &RefundRecordLogic{db: db}
}

// CreateRefundRecord 创建退款记录，同一事件序号重复写入时忽略
func (r *RefundRecordLogic) CreateRefundRecord(record *model.RefundRecordModel) error {
	if record.CampaignId == 0 {
		return errors.New("活动ID不能为空")
	}
	if record.Address == "" {
		return errors.New("退款地址不能为空")
	}
	if !validAmount(record.Amount) {
		return errors.New("退款金额无效")
	}
	if record.ReleasedTokens == "" {
		record.ReleasedTokens = "0"
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return fmt.Errorf("创建退款记录失败: %w", err)
	}
	return nil
}

// GetCampaignRefundRecords 获取活动退款记录
func (r *RefundRecordLogic) GetCampaignRefundRecords(campaignId uint64, page, pageSize int) ([]model.RefundRecordModel, int64, error) {
	var records []model.RefundRecordModel
	var total int64

	query := r.db.Model(&model.RefundRecordModel{}).Where("campaign_id = ?", campaignId)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取退款记录总数失败: %w", err)
	}
	offset, limit := normalizePage(page, pageSize)
	if err := query.Offset(offset).Limit(limit).Order("seq DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取退款记录失败: %w", err)
	}
	return records, total, nil
}

// GetRefundStats 获取退款统计信息
func (r *RefundRecordLogic) GetRefundStats(campaignId uint64) (map[string]interface{}, error) {
	var count int64
	var amounts []string

	if err := r.db.Model(&model.RefundRecordModel{}).Where("campaign_id = ?", campaignId).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("获取退款记录数失败: %w", err)
	}
	if err := r.db.Model(&model.RefundRecordModel{}).Where("campaign_id = ?", campaignId).Pluck("amount", &amounts).Error; err != nil {
		return nil, fmt.Errorf("获取退款金额失败: %w", err)
	}

	return map[string]interface{}{
		"total_refunds": count,
		"total_amount":  sumAmounts(amounts).String(),
	}, nil
}

// HasRefunded 某地址在活动中是否已有退款记录
func (r *RefundRecordLogic) HasRefunded(campaignId uint64, address string) (bool, error) {
	var count int64
	err := r.db.Model(&model.RefundRecordModel{}).
		Where("campaign_id = ? AND address = ?", campaignId, address).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("检查退款记录失败: %w", err)
	}
	return count > 0, nil
}
