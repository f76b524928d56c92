package logic

import (
	"errors"
	"fmt"

	"github.com/blues/cfl/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContributeRecordLogic 贡献记录业务逻辑
type ContributeRecordLogic struct {
	db *gorm.DB
}

// NewContributeRecordLogic 创建贡献记录业务逻辑
func NewContributeRecordLogic(db *gorm.DB) *ContributeRecordLogic {
	return &ContributeRecordLogic{db: db}
}

// CreateContributeRecord 创建贡献记录，同一事件序号重复写入时忽略
func (c *ContributeRecordLogic) CreateContributeRecord(record *model.ContributeRecordModel) error {
	if err := c.validateContributeRecord(record); err != nil {
		return err
	}
	if record.Tokens == "" {
		record.Tokens = "0"
	}
	if err := c.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return fmt.Errorf("创建贡献记录失败: %w", err)
	}
	return nil
}

// GetCampaignContributeRecords 获取活动贡献记录
func (c *ContributeRecordLogic) GetCampaignContributeRecords(campaignId uint64, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	return c.page(c.db.Where("campaign_id = ?", campaignId), page, pageSize)
}

// GetContributorRecords 获取某地址的全部贡献记录
func (c *ContributeRecordLogic) GetContributorRecords(address string, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	return c.page(c.db.Where("address = ?", address), page, pageSize)
}

func (c *ContributeRecordLogic) page(query *gorm.DB, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	var records []model.ContributeRecordModel
	var total int64

	if err := query.Model(&model.ContributeRecordModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取贡献记录总数失败: %w", err)
	}
	offset, limit := normalizePage(page, pageSize)
	if err := query.Offset(offset).Limit(limit).Order("seq DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取贡献记录失败: %w", err)
	}
	return records, total, nil
}

// validateContributeRecord 验证贡献数据
func (c *ContributeRecordLogic) validateContributeRecord(record *model.ContributeRecordModel) error {
	if record.CampaignId == 0 {
		return errors.New("活动ID不能为空")
	}
	if !validAmount(record.Amount) || record.Amount == "0" {
		return errors.New("贡献金额必须大于0")
	}
	if record.Address == "" {
		return errors.New("贡献者地址不能为空")
	}
	if record.Seq == 0 {
		return errors.New("事件序号不能为空")
	}
	return nil
}

// GetContributeStats 获取贡献统计信息
func (c *ContributeRecordLogic) GetContributeStats(campaignId uint64) (map[string]interface{}, error) {
	var stats struct {
		TotalContributions int64
		UniqueContributors int64
		Amounts            []string
		Tokens             []string
	}

	scope := func() *gorm.DB {
		return c.db.Model(&model.ContributeRecordModel{}).Where("campaign_id = ?", campaignId)
	}
	if err := scope().Count(&stats.TotalContributions).Error; err != nil {
		return nil, fmt.Errorf("获取总贡献记录数失败: %w", err)
	}
	if err := scope().Distinct("address").Count(&stats.UniqueContributors).Error; err != nil {
		return nil, fmt.Errorf("获取唯一贡献者数量失败: %w", err)
	}
	if err := scope().Pluck("amount", &stats.Amounts).Error; err != nil {
		return nil, fmt.Errorf("获取贡献金额失败: %w", err)
	}
	if err := scope().Pluck("tokens", &stats.Tokens).Error; err != nil {
		return nil, fmt.Errorf("获取代币数量失败: %w", err)
	}

	return map[string]interface{}{
		"total_contributions": stats.TotalContributions,
		"unique_contributors": stats.UniqueContributors,
		"total_amount":        sumAmounts(stats.Amounts).String(),
		"total_tokens":        sumAmounts(stats.Tokens).String(),
	}, nil
}
