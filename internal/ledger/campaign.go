package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenPriceScale 代币价格的定点精度
var TokenPriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Campaign 众筹活动记录
type Campaign struct {
	ID       uint64
	Creator  common.Address
	Goal     *big.Int
	Deadline time.Time
	Raised   *big.Int

	Withdrawn bool
	Cancelled bool
	Approved  bool

	Asset            Asset
	MinContribution  *big.Int
	WhitelistEnabled bool
	RewardEnabled    bool

	// ICO 相关
	IsIco         bool
	SaleToken     common.Address
	TokenPrice    *big.Int
	TokensSold    *big.Int
	TokensClaimed *big.Int
	Pool          *big.Int

	CreatedAt time.Time
}

// clone 返回深拷贝，供外部只读使用
func (c *Campaign) clone() Campaign {
	out := *c
	out.Goal = copyInt(c.Goal)
	out.Raised = copyInt(c.Raised)
	out.MinContribution = copyInt(c.MinContribution)
	out.TokenPrice = copyInt(c.TokenPrice)
	out.TokensSold = copyInt(c.TokensSold)
	out.TokensClaimed = copyInt(c.TokensClaimed)
	out.Pool = copyInt(c.Pool)
	return out
}

// GoalReached 是否达到目标
func (c *Campaign) GoalReached() bool {
	return c.Raised.Cmp(c.Goal) >= 0
}

// Owed 已售出但未领取的代币
func (c *Campaign) Owed() *big.Int {
	return new(big.Int).Sub(c.TokensSold, c.TokensClaimed)
}

// Available 托管池中未被预留的代币，不足时为 0
func (c *Campaign) Available() *big.Int {
	available := new(big.Int).Sub(c.Pool, c.Owed())
	if available.Sign() < 0 {
		return new(big.Int)
	}
	return available
}

// escrowAsset ICO 代币资产
func (c *Campaign) escrowAsset() Asset {
	return FungibleAsset(c.SaleToken)
}

// Status 活动生命周期状态（派生，仅供读取）
type Status string

const (
	StatusPendingApproval Status = "pending_approval" // 待审批
	StatusFunding         Status = "funding"          // 募集中
	StatusCancelled       Status = "cancelled"        // 已取消
	StatusSucceeded       Status = "succeeded"        // 已达标未提取
	StatusWithdrawn       Status = "withdrawn"        // 已提取
	StatusFailed          Status = "failed"           // 已失败，可退款
)

// StatusAt 计算活动在 now 时刻的状态
func (c *Campaign) StatusAt(now time.Time) Status {
	switch {
	case c.Cancelled:
		return StatusCancelled
	case c.Withdrawn:
		return StatusWithdrawn
	case c.GoalReached():
		return StatusSucceeded
	case !now.Before(c.Deadline):
		return StatusFailed
	case !c.Approved:
		return StatusPendingApproval
	default:
		return StatusFunding
	}
}

// account 单个 (活动, 贡献者) 的账户
type account struct {
	contributed *big.Int
	owedTokens  *big.Int
	whitelisted bool
	rewarded    bool
}

type accountKey struct {
	campaignID uint64
	holder     common.Address
}

func newAccount() *account {
	return &account{contributed: new(big.Int), owedTokens: new(big.Int)}
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func bigFromUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
