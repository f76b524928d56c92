package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CampaignParams 创建活动参数
type CampaignParams struct {
	Goal             *big.Int
	Deadline         time.Time
	Asset            Asset
	MinContribution  *big.Int
	WhitelistEnabled bool
	RewardEnabled    bool
}

// IcoParams 创建 ICO 活动参数，募集资产固定为原生币
type IcoParams struct {
	Goal             *big.Int
	Deadline         time.Time
	SaleToken        common.Address
	MinContribution  *big.Int
	WhitelistEnabled bool
	RewardEnabled    bool
	TokenPrice       *big.Int // 每 1 个原生币单位可得的代币数量，按 TokenPriceScale 定点
}

// CreateCampaign 创建普通活动，返回活动 ID
func (l *Ledger) CreateCampaign(ctx context.Context, creator common.Address, p CampaignParams) (uint64, error) {
	var id uint64
	err := l.execute(ctx, "create", false, func(ctx context.Context, tx *txn) error {
		if err := l.validateCommon(p.Goal, p.Deadline, p.MinContribution, p.RewardEnabled); err != nil {
			return err
		}
		if !p.Asset.valid() {
			return ErrWrongAsset
		}

		c := l.newCampaign(creator, p.Goal, p.Deadline, p.Asset, p.MinContribution, p.WhitelistEnabled, p.RewardEnabled)
		l.appendCampaign(tx, c)

		ev := l.event(EventCampaignCreated, c.ID, creator)
		snapshot := c.clone()
		ev.Campaign = &snapshot
		tx.emit(ev)
		id = c.ID
		return nil
	})
	return id, err
}

// CreateIcoCampaign 创建 ICO 活动，返回活动 ID
func (l *Ledger) CreateIcoCampaign(ctx context.Context, creator common.Address, p IcoParams) (uint64, error) {
	var id uint64
	err := l.execute(ctx, "create_ico", false, func(ctx context.Context, tx *txn) error {
		if err := l.validateCommon(p.Goal, p.Deadline, p.MinContribution, p.RewardEnabled); err != nil {
			return err
		}
		if p.SaleToken == (common.Address{}) {
			return ErrWrongAsset
		}
		if p.TokenPrice == nil || p.TokenPrice.Sign() <= 0 {
			return ErrInvalidPrice
		}

		c := l.newCampaign(creator, p.Goal, p.Deadline, NativeAsset(), p.MinContribution, p.WhitelistEnabled, p.RewardEnabled)
		c.IsIco = true
		c.SaleToken = p.SaleToken
		c.TokenPrice = copyInt(p.TokenPrice)
		l.appendCampaign(tx, c)

		ev := l.event(EventIcoCampaignCreated, c.ID, creator)
		snapshot := c.clone()
		ev.Campaign = &snapshot
		tx.emit(ev)
		id = c.ID
		return nil
	})
	return id, err
}

func (l *Ledger) validateCommon(goal *big.Int, deadline time.Time, minContribution *big.Int, rewardEnabled bool) error {
	if goal == nil || goal.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !deadline.After(l.now()) {
		return ErrInvalidDeadline
	}
	if minContribution != nil && minContribution.Sign() < 0 {
		return ErrInvalidAmount
	}
	if rewardEnabled && l.receipts == nil {
		return ErrRewardUnavailable
	}
	return nil
}

func (l *Ledger) newCampaign(creator common.Address, goal *big.Int, deadline time.Time, asset Asset, minContribution *big.Int, whitelist, reward bool) *Campaign {
	if minContribution == nil {
		minContribution = new(big.Int)
	}
	return &Campaign{
		ID:               uint64(len(l.campaigns)) + 1,
		Creator:          creator,
		Goal:             copyInt(goal),
		Deadline:         deadline,
		Raised:           new(big.Int),
		Approved:         l.settings.Approver == (common.Address{}),
		Asset:            asset,
		MinContribution:  copyInt(minContribution),
		WhitelistEnabled: whitelist,
		RewardEnabled:    reward,
		TokenPrice:       new(big.Int),
		TokensSold:       new(big.Int),
		TokensClaimed:    new(big.Int),
		Pool:             new(big.Int),
		CreatedAt:        l.now(),
	}
}

func (l *Ledger) appendCampaign(tx *txn, c *Campaign) {
	l.campaigns = append(l.campaigns, c)
	n := len(l.campaigns) - 1
	tx.onUndo(func() { l.campaigns = l.campaigns[:n] })
}
