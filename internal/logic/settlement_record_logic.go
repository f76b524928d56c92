package logic

import (
	"errors"
	"fmt"

	"github.com/blues/cfl/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementRecordLogic 结算记录业务逻辑
type SettlementRecordLogic struct {
	db *gorm.DB
}

// NewSettlementRecordLogic 创建结算记录业务逻辑
func NewSettlementRecordLogic(db *gorm.DB) *SettlementRecordLogic {
	return &SettlementRecordLogic{db: db}
}

// CreateSettlementRecord 创建结算记录，手续费与创建者金额之和必须等于总额
func (s *SettlementRecordLogic) CreateSettlementRecord(record *model.SettlementRecordModel) error {
	if record.CampaignId == 0 {
		return errors.New("活动ID不能为空")
	}
	if !validAmount(record.PlatformFee) || !validAmount(record.CreatorAmount) {
		return errors.New("结算金额无效")
	}
	total := sumAmounts([]string{record.PlatformFee, record.CreatorAmount})
	if record.TotalAmount == "" {
		record.TotalAmount = total.String()
	}
	if record.TotalAmount != total.String() {
		return fmt.Errorf("结算金额不平: %s != %s + %s", record.TotalAmount, record.PlatformFee, record.CreatorAmount)
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return fmt.Errorf("创建结算记录失败: %w", err)
	}
	return nil
}

// GetSettlementRecord 获取活动的结算记录
func (s *SettlementRecordLogic) GetSettlementRecord(campaignId uint64) (*model.SettlementRecordModel, error) {
	var record model.SettlementRecordModel
	if err := s.db.Where("campaign_id = ?", campaignId).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("获取结算记录失败: %w", err)
	}
	return &record, nil
}

// GetSettlementRecords 分页获取结算记录
func (s *SettlementRecordLogic) GetSettlementRecords(page, pageSize int) ([]model.SettlementRecordModel, int64, error) {
	var records []model.SettlementRecordModel
	var total int64

	if err := s.db.Model(&model.SettlementRecordModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取结算记录总数失败: %w", err)
	}
	offset, limit := normalizePage(page, pageSize)
	if err := s.db.Offset(offset).Limit(limit).Order("seq DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取结算记录失败: %w", err)
	}
	return records, total, nil
}

// GetPlatformFeeTotal 平台累计手续费
func (s *SettlementRecordLogic) GetPlatformFeeTotal() (string, error) {
	var fees []string
	if err := s.db.Model(&model.SettlementRecordModel{}).Pluck("platform_fee", &fees).Error; err != nil {
		return "", fmt.Errorf("获取平台手续费失败: %w", err)
	}
	return sumAmounts(fees).String(), nil
}
