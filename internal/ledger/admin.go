package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// SetApprover 设置审批方，零地址表示清除（只影响之后创建的活动）
func (l *Ledger) SetApprover(ctx context.Context, caller, approver common.Address) error {
	return l.execute(ctx, "set_approver", false, func(ctx context.Context, tx *txn) error {
		if caller != l.settings.Owner {
			return ErrNotOwner
		}
		old := l.settings.Approver
		l.settings.Approver = approver
		tx.onUndo(func() { l.settings.Approver = old })

		ev := l.event(EventApproverUpdated, 0, caller)
		ev.Recipient = approver
		tx.emit(ev)
		return nil
	})
}

// Approve 审批活动，重复审批不报错
func (l *Ledger) Approve(ctx context.Context, caller common.Address, id uint64) error {
	return l.execute(ctx, "approve", false, func(ctx context.Context, tx *txn) error {
		c, err := l.campaign(id)
		if err != nil {
			return err
		}
		if l.settings.Approver == (common.Address{}) || caller != l.settings.Approver {
			return ErrNotApprover
		}
		if c.Approved {
			return nil
		}
		tx.setBool(&c.Approved, true)
		tx.emit(l.event(EventCampaignApproved, id, caller))
		return nil
	})
}

// SetFee 设置手续费率（基点）与收款方
func (l *Ledger) SetFee(ctx context.Context, caller common.Address, feeBps uint64, recipient common.Address) error {
	return l.execute(ctx, "set_fee", false, func(ctx context.Context, tx *txn) error {
		if caller != l.settings.Owner {
			return ErrNotOwner
		}
		if feeBps > MaxFeeBps {
			return ErrInvalidFeeRate
		}
		if feeBps > 0 && recipient == (common.Address{}) {
			return ErrInvalidFeeRecipient
		}
		oldBps, oldRecipient := l.settings.FeeBps, l.settings.FeeRecipient
		l.settings.FeeBps, l.settings.FeeRecipient = feeBps, recipient
		tx.onUndo(func() { l.settings.FeeBps, l.settings.FeeRecipient = oldBps, oldRecipient })

		ev := l.event(EventFeeUpdated, 0, caller)
		ev.Recipient = recipient
		ev.Amount = bigFromUint(feeBps)
		tx.emit(ev)
		return nil
	})
}

// SetReceiptBaseURI 设置凭证元数据基础地址
func (l *Ledger) SetReceiptBaseURI(ctx context.Context, caller common.Address, uri string) error {
	return l.execute(ctx, "set_receipt_base", false, func(ctx context.Context, tx *txn) error {
		if caller != l.settings.Owner {
			return ErrNotOwner
		}
		if l.receipts == nil {
			return ErrRewardUnavailable
		}
		old := l.settings.ReceiptBaseURI
		l.settings.ReceiptBaseURI = uri
		l.receipts.SetBaseURI(uri)
		tx.onUndo(func() {
			l.settings.ReceiptBaseURI = old
			l.receipts.SetBaseURI(old)
		})

		ev := l.event(EventReceiptBaseUpdated, 0, caller)
		ev.Text = uri
		tx.emit(ev)
		return nil
	})
}

// TransferOwnership 转移管理员
func (l *Ledger) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return l.execute(ctx, "transfer_ownership", false, func(ctx context.Context, tx *txn) error {
		if caller != l.settings.Owner {
			return ErrNotOwner
		}
		if newOwner == (common.Address{}) {
			return ErrInvalidOwner
		}
		old := l.settings.Owner
		l.settings.Owner = newOwner
		tx.onUndo(func() { l.settings.Owner = old })

		ev := l.event(EventOwnershipMoved, 0, caller)
		ev.Recipient = newOwner
		tx.emit(ev)
		return nil
	})
}
