package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType 账本事件类型
type EventType string

const (
	EventCampaignCreated    EventType = "CampaignCreated"
	EventIcoCampaignCreated EventType = "IcoCampaignCreated"
	EventCampaignApproved   EventType = "CampaignApproved"
	EventCampaignCancelled  EventType = "CampaignCancelled"
	EventContributed        EventType = "Contributed"
	EventIcoContributed     EventType = "IcoContributed"
	EventWithdrawn          EventType = "Withdrawn"
	EventRefunded           EventType = "Refunded"
	EventWhitelistUpdated   EventType = "WhitelistUpdated"
	EventFeeUpdated         EventType = "FeeUpdated"
	EventApproverUpdated    EventType = "ApproverUpdated"
	EventReceiptBaseUpdated EventType = "ReceiptBaseURIUpdated"
	EventOwnershipMoved     EventType = "OwnershipTransferred"
	EventTokensDeposited    EventType = "TokensDeposited"
	EventTokensClaimed      EventType = "TokensClaimed"
	EventUnsoldWithdrawn    EventType = "UnsoldTokensWithdrawn"
	EventRewardIssued       EventType = "RewardIssued"
)

// Event 账本事件。Seq 全局递增，只有提交成功的状态转换才会产生事件。
// 未使用的数值字段为 nil。
type Event struct {
	Seq        uint64
	Type       EventType
	CampaignID uint64
	Actor      common.Address
	Amount     *big.Int
	Fee        *big.Int
	Tokens     *big.Int
	Recipient  common.Address
	Flag       bool
	ReceiptID  uint64
	Text       string
	Campaign   *Campaign // 仅创建事件携带参数快照
	Time       time.Time
}

// Emitter 事件接收方
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc 函数适配
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}
