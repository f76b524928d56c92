package logic

import (
	"errors"
	"fmt"

	"github.com/blues/cfl/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EscrowRecordLogic ICO 托管流水业务逻辑
type EscrowRecordLogic struct {
	db *gorm.DB
}

// NewEscrowRecordLogic 创建托管流水业务逻辑
func NewEscrowRecordLogic(db *gorm.DB) *EscrowRecordLogic {
	return &EscrowRecordLogic{db: db}
}

// CreateEscrowRecord 创建托管流水
func (e *EscrowRecordLogic) CreateEscrowRecord(record *model.EscrowRecordModel) error {
	switch record.Kind {
	case model.EscrowKindDeposit, model.EscrowKindClaim, model.EscrowKindUnsold:
	default:
		return fmt.Errorf("未知的托管流水类型: %s", record.Kind)
	}
	if record.CampaignId == 0 {
		return errors.New("活动ID不能为空")
	}
	if !validAmount(record.Tokens) {
		return errors.New("代币数量无效")
	}
	if err := e.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return fmt.Errorf("创建托管流水失败: %w", err)
	}
	return nil
}

// GetCampaignEscrowRecords 获取活动托管流水，按时间正序
func (e *EscrowRecordLogic) GetCampaignEscrowRecords(campaignId uint64, page, pageSize int) ([]model.EscrowRecordModel, int64, error) {
	var records []model.EscrowRecordModel
	var total int64

	query := e.db.Model(&model.EscrowRecordModel{}).Where("campaign_id = ?", campaignId)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取托管流水总数失败: %w", err)
	}
	offset, limit := normalizePage(page, pageSize)
	if err := query.Offset(offset).Limit(limit).Order("seq ASC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取托管流水失败: %w", err)
	}
	return records, total, nil
}

// GetEscrowBalance 按流水推算的托管池余额：存入减去领取与取回
func (e *EscrowRecordLogic) GetEscrowBalance(campaignId uint64) (string, error) {
	balance := sumAmounts(nil)
	for _, kind := range []model.EscrowKind{model.EscrowKindDeposit, model.EscrowKindClaim, model.EscrowKindUnsold} {
		var tokens []string
		err := e.db.Model(&model.EscrowRecordModel{}).
			Where("campaign_id = ? AND kind = ?", campaignId, kind).
			Pluck("tokens", &tokens).Error
		if err != nil {
			return "", fmt.Errorf("获取托管流水失败: %w", err)
		}
		if kind == model.EscrowKindDeposit {
			balance.Add(balance, sumAmounts(tokens))
		} else {
			balance.Sub(balance, sumAmounts(tokens))
		}
	}
	return balance.String(), nil
}
