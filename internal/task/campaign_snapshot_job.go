package task

import (
	"context"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/model"
	"github.com/go-co-op/gocron/v2"
)

// CampaignSnapshotJob 把账本中的活动快照同步到查询库
type CampaignSnapshotJob struct {
	ledger        *ledger.Ledger
	campaignLogic *logic.CampaignLogic
	interval      time.Duration
}

// NewCampaignSnapshotJob 创建活动快照任务
func NewCampaignSnapshotJob(l *ledger.Ledger, campaignLogic *logic.CampaignLogic, interval time.Duration) *CampaignSnapshotJob {
	return &CampaignSnapshotJob{
		ledger:        l,
		campaignLogic: campaignLogic,
		interval:      interval,
	}
}

// GetName 获取任务名称
func (j *CampaignSnapshotJob) GetName() string {
	return "campaign_snapshot"
}

// GetSchedule 获取调度配置
func (j *CampaignSnapshotJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CampaignSnapshotJob) Execute() {
	if _, err := j.run(context.Background()); err != nil {
		logger.Error("Failed to sync campaign snapshots: %v", err)
	}
}

func (j *CampaignSnapshotJob) run(ctx context.Context) (int, error) {
	campaigns := j.ledger.Campaigns(ctx)
	rows := make([]model.CampaignModel, 0, len(campaigns))
	for _, c := range campaigns {
		status, err := j.ledger.Status(ctx, c.ID)
		if err != nil {
			return 0, err
		}
		rows = append(rows, toCampaignModel(c, status))
	}

	if err := j.campaignLogic.SyncCampaigns(rows); err != nil {
		return 0, err
	}
	logger.Debug("Synced %d campaign snapshots", len(rows))
	return len(rows), nil
}

func toCampaignModel(c ledger.Campaign, status ledger.Status) model.CampaignModel {
	row := model.CampaignModel{
		CampaignId:       c.ID,
		Creator:          c.Creator.Hex(),
		AssetKind:        c.Asset.Kind.String(),
		Goal:             c.Goal.String(),
		Raised:           c.Raised.String(),
		MinContribution:  c.MinContribution.String(),
		Deadline:         c.Deadline.UTC(),
		WhitelistEnabled: c.WhitelistEnabled,
		RewardEnabled:    c.RewardEnabled,
		Approved:         c.Approved,
		Cancelled:        c.Cancelled,
		Withdrawn:        c.Withdrawn,
		IsIco:            c.IsIco,
		TokensSold:       c.TokensSold.String(),
		TokensClaimed:    c.TokensClaimed.String(),
		Pool:             c.Pool.String(),
		Status:           model.CampaignStatus(status),
	}
	if !c.Asset.IsNative() {
		row.Token = c.Asset.Token.Hex()
	}
	if c.IsIco {
		row.SaleToken = c.SaleToken.Hex()
		row.TokenPrice = c.TokenPrice.String()
	}
	return row
}
