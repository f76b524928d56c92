package logic

import (
	"errors"
	"fmt"

	"github.com/blues/cfl/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignLogic 活动投影业务逻辑
type CampaignLogic struct {
	db *gorm.DB
}

// NewCampaignLogic 创建活动投影业务逻辑
func NewCampaignLogic(db *gorm.DB) *CampaignLogic {
	return &CampaignLogic{db: db}
}

// SyncCampaigns 按 campaign_id 批量写入或覆盖投影
func (c *CampaignLogic) SyncCampaigns(campaigns []model.CampaignModel) error {
	if len(campaigns) == 0 {
		return nil
	}
	err := c.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "raised", "approved", "cancelled", "withdrawn",
			"tokens_sold", "tokens_claimed", "pool", "status",
		}),
	}).Create(&campaigns).Error
	if err != nil {
		return fmt.Errorf("同步活动投影失败: %w", err)
	}
	return nil
}

// GetCampaigns 分页查询活动，status 与 creator 为空时不过滤
func (c *CampaignLogic) GetCampaigns(status, creator string, page, pageSize int) ([]model.CampaignModel, int64, error) {
	var campaigns []model.CampaignModel
	var total int64

	query := c.db.Model(&model.CampaignModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if creator != "" {
		query = query.Where("creator = ?", creator)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动总数失败: %w", err)
	}

	offset, limit := normalizePage(page, pageSize)
	if err := query.Offset(offset).Limit(limit).Order("campaign_id DESC").Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动列表失败: %w", err)
	}
	return campaigns, total, nil
}

// GetCampaign 按账本活动 ID 查询
func (c *CampaignLogic) GetCampaign(campaignId uint64) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := c.db.Where("campaign_id = ?", campaignId).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("获取活动失败: %w", err)
	}
	return &campaign, nil
}

// GetCampaignStats 活动维度的统计
func (c *CampaignLogic) GetCampaignStats(campaignId uint64) (map[string]interface{}, error) {
	campaign, err := c.GetCampaign(campaignId)
	if err != nil {
		return nil, err
	}

	contributions, err := NewContributeRecordLogic(c.db).GetContributeStats(campaignId)
	if err != nil {
		return nil, err
	}
	refunds, err := NewRefundRecordLogic(c.db).GetRefundStats(campaignId)
	if err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		"campaign_id":   campaign.CampaignId,
		"status":        campaign.Status,
		"goal":          campaign.Goal,
		"raised":        campaign.Raised,
		"contributions": contributions,
		"refunds":       refunds,
	}
	settlement, err := NewSettlementRecordLogic(c.db).GetSettlementRecord(campaignId)
	switch {
	case err == nil:
		stats["settlement"] = settlement
	case !errors.Is(err, ErrSettlementNotFound):
		return nil, err
	}
	return stats, nil
}
