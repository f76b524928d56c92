package event

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Payload 事件的持久化与发布格式，金额为十进制字符串
type Payload struct {
	Seq        uint64           `json:"seq"`
	Type       string           `json:"type"`
	CampaignId uint64           `json:"campaign_id,omitempty"`
	Actor      string           `json:"actor"`
	Amount     string           `json:"amount,omitempty"`
	Fee        string           `json:"fee,omitempty"`
	Tokens     string           `json:"tokens,omitempty"`
	Recipient  string           `json:"recipient,omitempty"`
	Flag       bool             `json:"flag,omitempty"`
	ReceiptId  uint64           `json:"receipt_id,omitempty"`
	Text       string           `json:"text,omitempty"`
	Campaign   *CampaignPayload `json:"campaign,omitempty"`
	Time       time.Time        `json:"time"`
}

// CampaignPayload 创建事件携带的活动参数
type CampaignPayload struct {
	Creator          string    `json:"creator"`
	Goal             string    `json:"goal"`
	Deadline         time.Time `json:"deadline"`
	AssetKind        string    `json:"asset_kind"`
	Token            string    `json:"token,omitempty"`
	MinContribution  string    `json:"min_contribution"`
	WhitelistEnabled bool      `json:"whitelist_enabled"`
	RewardEnabled    bool      `json:"reward_enabled"`
	Approved         bool      `json:"approved"`
	IsIco            bool      `json:"is_ico"`
	SaleToken        string    `json:"sale_token,omitempty"`
	TokenPrice       string    `json:"token_price,omitempty"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func addressString(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

// NewPayload 由账本事件构造
func NewPayload(ev ledger.Event) *Payload {
	p := &Payload{
		Seq:        ev.Seq,
		Type:       string(ev.Type),
		CampaignId: ev.CampaignID,
		Actor:      ev.Actor.Hex(),
		Amount:     amountString(ev.Amount),
		Fee:        amountString(ev.Fee),
		Tokens:     amountString(ev.Tokens),
		Recipient:  addressString(ev.Recipient),
		Flag:       ev.Flag,
		ReceiptId:  ev.ReceiptID,
		Text:       ev.Text,
		Time:       ev.Time.UTC(),
	}
	if c := ev.Campaign; c != nil {
		p.Campaign = &CampaignPayload{
			Creator:          c.Creator.Hex(),
			Goal:             amountString(c.Goal),
			Deadline:         c.Deadline.UTC(),
			AssetKind:        c.Asset.Kind.String(),
			Token:            addressString(c.Asset.Token),
			MinContribution:  amountString(c.MinContribution),
			WhitelistEnabled: c.WhitelistEnabled,
			RewardEnabled:    c.RewardEnabled,
			Approved:         c.Approved,
			IsIco:            c.IsIco,
			SaleToken:        addressString(c.SaleToken),
			TokenPrice:       amountString(c.TokenPrice),
		}
	}
	return p
}

// ToModel 转换为事件记录
func (p *Payload) ToModel() (model.EventModel, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return model.EventModel{}, fmt.Errorf("failed to marshal event %d: %w", p.Seq, err)
	}
	return model.EventModel{
		EventId:    uuid.NewString(),
		Seq:        p.Seq,
		CampaignId: p.CampaignId,
		EventType:  p.Type,
		Actor:      p.Actor,
		Data:       string(data),
		EventTime:  p.Time,
	}, nil
}

// DecodePayload 从事件记录解析
func DecodePayload(event *model.EventModel) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(event.Data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %d: %w", event.Seq, err)
	}
	return &p, nil
}

// AmountOrZero 空金额按 0 处理
func AmountOrZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
