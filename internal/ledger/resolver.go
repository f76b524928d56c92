package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Withdraw 活动达标后由创建者一次性提取，按费率拆分手续费
func (l *Ledger) Withdraw(ctx context.Context, caller common.Address, id uint64) error {
	return l.execute(ctx, "withdraw", true, func(ctx context.Context, tx *txn) error {
		c, err := l.campaign(id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return ErrNotCreator
		}
		if c.Cancelled {
			return ErrCampaignCancelled
		}
		if c.Withdrawn {
			return ErrAlreadyWithdrawn
		}
		if !c.GoalReached() {
			return ErrGoalNotReached
		}
		fee, payout := splitFee(c.Raised, l.settings.FeeBps)

		// 划出无法撤回的后端上，所有检查都要在第一笔转出之前完成
		if fee.Sign() > 0 && l.settings.FeeRecipient == (common.Address{}) {
			return ErrInvalidFeeRecipient
		}
		if !c.Asset.IsNative() {
			if err := l.ensureSpendable(ctx, c.Asset, c.Raised); err != nil {
				return err
			}
		}

		tx.setBool(&c.Withdrawn, true)

		ev := l.event(EventWithdrawn, id, caller)
		ev.Amount = payout
		ev.Fee = fee
		if fee.Sign() > 0 {
			ev.Recipient = l.settings.FeeRecipient
		}
		tx.emit(ev)

		if fee.Sign() > 0 {
			if err := l.transfer.PushTo(ctx, c.Asset, l.settings.FeeRecipient, fee); err != nil {
				return fmt.Errorf("%w: fee %s to %s: %v", ErrTransferFailed, fee, l.settings.FeeRecipient.Hex(), err)
			}
		}
		if err := l.transfer.PushTo(ctx, c.Asset, c.Creator, payout); err != nil {
			return fmt.Errorf("%w: payout %s to %s: %v", ErrTransferFailed, payout, c.Creator.Hex(), err)
		}
		return nil
	})
}

// ensureSpendable 托管余额扣除 ICO 预留后必须覆盖 amount
func (l *Ledger) ensureSpendable(ctx context.Context, asset Asset, amount *big.Int) error {
	balance, err := l.transfer.BalanceOf(ctx, asset, l.custody)
	if err != nil {
		return fmt.Errorf("%w: balance of %s: %v", ErrTransferFailed, asset, err)
	}
	spendable := new(big.Int).Sub(balance, l.reservedFor(asset.Token))
	if spendable.Cmp(amount) < 0 {
		return fmt.Errorf("%w: spendable %s below %s", ErrTransferFailed, spendable, amount)
	}
	return nil
}

// splitFee fee = floor(raised * bps / 10000)
func splitFee(raised *big.Int, feeBps uint64) (fee, payout *big.Int) {
	fee = new(big.Int)
	if feeBps > 0 {
		fee.Mul(raised, bigFromUint(feeBps))
		fee.Quo(fee, big.NewInt(bpsDenominator))
	}
	payout = new(big.Int).Sub(raised, fee)
	return fee, payout
}

// Refund 失败活动的贡献者逐个取回资金。
// raised 不回减，它记录的是历史募集总额。
func (l *Ledger) Refund(ctx context.Context, contributor common.Address, id uint64) error {
	return l.execute(ctx, "refund", true, func(ctx context.Context, tx *txn) error {
		c, err := l.campaign(id)
		if err != nil {
			return err
		}
		if c.Cancelled {
			return ErrCampaignCancelled
		}
		if c.Withdrawn {
			return ErrAlreadyWithdrawn
		}
		if l.now().Before(c.Deadline) {
			return ErrDeadlineNotReached
		}
		if c.GoalReached() {
			return ErrGoalReached
		}
		acc := l.peekAccount(id, contributor)
		if acc.contributed.Sign() == 0 {
			return ErrNoContribution
		}
		acc = l.accountFor(tx, id, contributor)

		amount := acc.contributed
		tx.setInt(&acc.contributed, new(big.Int))

		ev := l.event(EventRefunded, id, contributor)
		ev.Amount = copyInt(amount)
		if c.IsIco && acc.owedTokens.Sign() > 0 {
			released := acc.owedTokens
			tx.setInt(&acc.owedTokens, new(big.Int))
			tx.setInt(&c.TokensSold, new(big.Int).Sub(c.TokensSold, released))
			ev.Tokens = copyInt(released)
		}
		tx.emit(ev)

		if err := l.transfer.PushTo(ctx, c.Asset, contributor, amount); err != nil {
			return fmt.Errorf("%w: refund %s to %s: %v", ErrTransferFailed, amount, contributor.Hex(), err)
		}
		return nil
	})
}
