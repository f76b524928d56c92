package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DepositTokens 创建者向 ICO 托管池存入待售代币
func (l *Ledger) DepositTokens(ctx context.Context, caller common.Address, id uint64, amount *big.Int) error {
	return l.execute(ctx, "deposit_tokens", true, func(ctx context.Context, tx *txn) error {
		c, err := l.icoCampaign(id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return ErrNotCreator
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrZeroAmount
		}
		tx.setInt(&c.Pool, new(big.Int).Add(c.Pool, amount))
		l.addReserved(tx, c.SaleToken, amount)

		ev := l.event(EventTokensDeposited, id, caller)
		ev.Tokens = copyInt(amount)
		tx.emit(ev)

		if err := l.transfer.PullFrom(ctx, c.escrowAsset(), caller, amount); err != nil {
			return fmt.Errorf("%w: deposit %s from %s: %v", ErrTransferFailed, amount, caller.Hex(), err)
		}
		return nil
	})
}

// ClaimTokens 贡献者领取已购代币
func (l *Ledger) ClaimTokens(ctx context.Context, caller common.Address, id uint64) error {
	return l.execute(ctx, "claim_tokens", true, func(ctx context.Context, tx *txn) error {
		c, err := l.icoCampaign(id)
		if err != nil {
			return err
		}
		if c.Cancelled {
			return ErrCampaignCancelled
		}
		if !c.GoalReached() {
			return ErrGoalNotReached
		}
		acc := l.peekAccount(id, caller)
		if acc.owedTokens.Sign() == 0 {
			return ErrNoContribution
		}
		acc = l.accountFor(tx, id, caller)

		owed := acc.owedTokens
		tx.setInt(&acc.owedTokens, new(big.Int))
		tx.setInt(&c.TokensClaimed, new(big.Int).Add(c.TokensClaimed, owed))
		tx.setInt(&c.Pool, new(big.Int).Sub(c.Pool, owed))
		l.addReserved(tx, c.SaleToken, new(big.Int).Neg(owed))

		ev := l.event(EventTokensClaimed, id, caller)
		ev.Tokens = copyInt(owed)
		tx.emit(ev)

		if err := l.transfer.PushTo(ctx, c.escrowAsset(), caller, owed); err != nil {
			return fmt.Errorf("%w: claim %s to %s: %v", ErrTransferFailed, owed, caller.Hex(), err)
		}
		return nil
	})
}

// WithdrawUnsoldTokens 活动结束（取消、到期或达标）后创建者取回未售出的代币
func (l *Ledger) WithdrawUnsoldTokens(ctx context.Context, caller common.Address, id uint64) error {
	return l.execute(ctx, "withdraw_unsold", true, func(ctx context.Context, tx *txn) error {
		c, err := l.icoCampaign(id)
		if err != nil {
			return err
		}
		if caller != c.Creator {
			return ErrNotCreator
		}
		if !c.Cancelled && !c.GoalReached() && l.now().Before(c.Deadline) {
			return ErrDeadlineNotReached
		}
		available := c.Available()
		if available.Sign() == 0 {
			return ErrNoTokensAvailable
		}
		tx.setInt(&c.Pool, new(big.Int).Sub(c.Pool, available))
		l.addReserved(tx, c.SaleToken, new(big.Int).Neg(available))

		ev := l.event(EventUnsoldWithdrawn, id, caller)
		ev.Tokens = copyInt(available)
		tx.emit(ev)

		if err := l.transfer.PushTo(ctx, c.escrowAsset(), caller, available); err != nil {
			return fmt.Errorf("%w: unsold %s to %s: %v", ErrTransferFailed, available, caller.Hex(), err)
		}
		return nil
	})
}

func (l *Ledger) icoCampaign(id uint64) (*Campaign, error) {
	c, err := l.campaign(id)
	if err != nil {
		return nil, err
	}
	if !c.IsIco {
		return nil, ErrNotIcoCampaign
	}
	return c, nil
}
