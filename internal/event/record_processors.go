package event

import (
	"fmt"

	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logger"
	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/model"
)

// ContributeProcessor 贡献事件处理器
type ContributeProcessor struct {
	contributeLogic *logic.ContributeRecordLogic
}

// NewContributeProcessor 创建贡献事件处理器
func NewContributeProcessor(contributeLogic *logic.ContributeRecordLogic) *ContributeProcessor {
	return &ContributeProcessor{contributeLogic: contributeLogic}
}

func (p *ContributeProcessor) GetEventTypes() []string {
	return []string{string(ledger.EventContributed), string(ledger.EventIcoContributed)}
}

// Process 写入贡献记录
func (p *ContributeProcessor) Process(event *model.EventModel, payload *Payload) error {
	record := model.ContributeRecordModel{
		CampaignId: payload.CampaignId,
		Address:    payload.Actor,
		Amount:     payload.Amount,
		Tokens:     AmountOrZero(payload.Tokens),
		Seq:        payload.Seq,
		EventTime:  payload.Time,
	}
	if err := p.contributeLogic.CreateContributeRecord(&record); err != nil {
		return fmt.Errorf("contribute event %d: %w", event.Seq, err)
	}
	logger.Debug("Recorded contribution %s from %s to campaign %d", payload.Amount, payload.Actor, payload.CampaignId)
	return nil
}

// RefundProcessor 退款事件处理器
type RefundProcessor struct {
	refundLogic *logic.RefundRecordLogic
}

// NewRefundProcessor 创建退款事件处理器
func NewRefundProcessor(refundLogic *logic.RefundRecordLogic) *RefundProcessor {
	return &RefundProcessor{refundLogic: refundLogic}
}

func (p *RefundProcessor) GetEventTypes() []string {
	return []string{string(ledger.EventRefunded)}
}

// Process 写入退款记录
func (p *RefundProcessor) Process(event *model.EventModel, payload *Payload) error {
	record := model.RefundRecordModel{
		CampaignId:     payload.CampaignId,
		Address:        payload.Actor,
		Amount:         payload.Amount,
		ReleasedTokens: AmountOrZero(payload.Tokens),
		Seq:            payload.Seq,
		EventTime:      payload.Time,
	}
	if err := p.refundLogic.CreateRefundRecord(&record); err != nil {
		return fmt.Errorf("refund event %d: %w", event.Seq, err)
	}
	return nil
}

// SettlementProcessor 提取事件处理器，记录手续费拆分
type SettlementProcessor struct {
	settlementLogic *logic.SettlementRecordLogic
}

// NewSettlementProcessor 创建结算事件处理器
func NewSettlementProcessor(settlementLogic *logic.SettlementRecordLogic) *SettlementProcessor {
	return &SettlementProcessor{settlementLogic: settlementLogic}
}

func (p *SettlementProcessor) GetEventTypes() []string {
	return []string{string(ledger.EventWithdrawn)}
}

// Process 写入结算记录
func (p *SettlementProcessor) Process(event *model.EventModel, payload *Payload) error {
	record := model.SettlementRecordModel{
		CampaignId:     payload.CampaignId,
		Creator:        payload.Actor,
		PlatformFee:    AmountOrZero(payload.Fee),
		CreatorAmount:  AmountOrZero(payload.Amount),
		FeeRecipient:   payload.Recipient,
		Seq:            payload.Seq,
		SettlementTime: payload.Time,
	}
	if err := p.settlementLogic.CreateSettlementRecord(&record); err != nil {
		return fmt.Errorf("withdraw event %d: %w", event.Seq, err)
	}
	logger.Info("Campaign %d settled: creator %s, platform fee %s", payload.CampaignId, record.CreatorAmount, record.PlatformFee)
	return nil
}

// EscrowProcessor ICO 托管事件处理器
type EscrowProcessor struct {
	escrowLogic *logic.EscrowRecordLogic
}

// NewEscrowProcessor 创建托管事件处理器
func NewEscrowProcessor(escrowLogic *logic.EscrowRecordLogic) *EscrowProcessor {
	return &EscrowProcessor{escrowLogic: escrowLogic}
}

func (p *EscrowProcessor) GetEventTypes() []string {
	return []string{
		string(ledger.EventTokensDeposited),
		string(ledger.EventTokensClaimed),
		string(ledger.EventUnsoldWithdrawn),
	}
}

// Process 写入托管流水
func (p *EscrowProcessor) Process(event *model.EventModel, payload *Payload) error {
	var kind model.EscrowKind
	switch ledger.EventType(payload.Type) {
	case ledger.EventTokensDeposited:
		kind = model.EscrowKindDeposit
	case ledger.EventTokensClaimed:
		kind = model.EscrowKindClaim
	default:
		kind = model.EscrowKindUnsold
	}

	record := model.EscrowRecordModel{
		CampaignId: payload.CampaignId,
		Address:    payload.Actor,
		Kind:       kind,
		Tokens:     AmountOrZero(payload.Tokens),
		Seq:        payload.Seq,
		EventTime:  payload.Time,
	}
	if err := p.escrowLogic.CreateEscrowRecord(&record); err != nil {
		return fmt.Errorf("escrow event %d: %w", event.Seq, err)
	}
	return nil
}
