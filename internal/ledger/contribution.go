package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Contribute 向活动贡献资金。
// 按活动资产分派：原生币、代币、ICO 共用同一套校验，状态变更先于外部划转。
func (l *Ledger) Contribute(ctx context.Context, contributor common.Address, id uint64, amount *big.Int) error {
	return l.execute(ctx, "contribute", true, func(ctx context.Context, tx *txn) error {
		c, err := l.campaign(id)
		if err != nil {
			return err
		}
		acc := l.peekAccount(id, contributor)
		if err := l.validateContribution(c, acc, amount); err != nil {
			return err
		}

		var tokens *big.Int
		if c.IsIco {
			tokens = new(big.Int).Mul(amount, c.TokenPrice)
			tokens.Quo(tokens, TokenPriceScale)
			if tokens.Sign() == 0 {
				return ErrZeroAmount
			}
			if c.Available().Cmp(tokens) < 0 {
				return ErrInsufficientIcoTokens
			}
		}

		acc = l.accountFor(tx, id, contributor)
		tx.setInt(&c.Raised, new(big.Int).Add(c.Raised, amount))
		tx.setInt(&acc.contributed, new(big.Int).Add(acc.contributed, amount))

		ev := l.event(EventContributed, id, contributor)
		ev.Amount = copyInt(amount)
		if c.IsIco {
			tx.setInt(&c.TokensSold, new(big.Int).Add(c.TokensSold, tokens))
			tx.setInt(&acc.owedTokens, new(big.Int).Add(acc.owedTokens, tokens))
			ev.Type = EventIcoContributed
			ev.Tokens = tokens
		}
		tx.emit(ev)

		if err := l.issueReward(ctx, tx, c, acc, contributor); err != nil {
			return err
		}

		if err := l.transfer.PullFrom(ctx, c.Asset, contributor, amount); err != nil {
			return fmt.Errorf("%w: pull %s from %s: %v", ErrTransferFailed, amount, contributor.Hex(), err)
		}
		return nil
	})
}

// validateContribution 校验顺序固定，保证错误优先级确定
func (l *Ledger) validateContribution(c *Campaign, acc *account, amount *big.Int) error {
	if c.Cancelled {
		return ErrCampaignCancelled
	}
	if c.Withdrawn || !l.now().Before(c.Deadline) {
		return ErrCampaignEnded
	}
	if !c.Approved {
		return ErrCampaignNotApproved
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if amount.Cmp(c.MinContribution) < 0 {
		return ErrBelowMinimum
	}
	if c.WhitelistEnabled && !acc.whitelisted {
		return ErrNotWhitelisted
	}
	return nil
}

// issueReward 每个 (活动, 贡献者) 至多发放一次凭证，标记先于外部调用
func (l *Ledger) issueReward(ctx context.Context, tx *txn, c *Campaign, acc *account, contributor common.Address) error {
	if !c.RewardEnabled || acc.rewarded {
		return nil
	}
	tx.setBool(&acc.rewarded, true)

	receiptID, err := l.receipts.Issue(ctx, contributor, c.ID)
	if err != nil {
		return fmt.Errorf("issue reward for campaign %d: %w", c.ID, err)
	}
	ev := l.event(EventRewardIssued, c.ID, contributor)
	ev.ReceiptID = receiptID
	tx.emit(ev)
	return nil
}

// SetWhitelist 设置单个地址的白名单状态
func (l *Ledger) SetWhitelist(ctx context.Context, caller common.Address, id uint64, holder common.Address, allowed bool) error {
	return l.SetWhitelistBatch(ctx, caller, id, []common.Address{holder}, allowed)
}

// SetWhitelistBatch 批量设置白名单，每个地址各产生一条事件
func (l *Ledger) SetWhitelistBatch(ctx context.Context, caller common.Address, id uint64, holders []common.Address, allowed bool) error {
	return l.execute(ctx, "set_whitelist", false, func(ctx context.Context, tx *txn) error {
		c, err := l.campaign(id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return ErrNotCreator
		}
		for _, holder := range holders {
			acc := l.accountFor(tx, id, holder)
			tx.setBool(&acc.whitelisted, allowed)

			ev := l.event(EventWhitelistUpdated, id, caller)
			ev.Recipient = holder
			ev.Flag = allowed
			tx.emit(ev)
		}
		return nil
	})
}

// Cancel 取消活动，只能在收到第一笔贡献之前
func (l *Ledger) Cancel(ctx context.Context, caller common.Address, id uint64) error {
	return l.execute(ctx, "cancel", false, func(ctx context.Context, tx *txn) error {
		c, err := l.campaign(id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return ErrNotCreator
		}
		if c.Cancelled {
			return ErrAlreadyCancelled
		}
		if c.Withdrawn {
			return ErrAlreadyWithdrawn
		}
		if c.Raised.Sign() > 0 {
			return ErrCampaignHasFunds
		}
		tx.setBool(&c.Cancelled, true)
		tx.emit(l.event(EventCampaignCancelled, id, caller))
		return nil
	})
}
