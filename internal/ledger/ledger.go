package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/blues/cfl/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

// MaxFeeBps 手续费上限（3%）
const MaxFeeBps = 300

const bpsDenominator = 10000

// Params 账本构造参数
type Params struct {
	Owner    common.Address  // 管理员
	Custody  common.Address  // 账本托管地址
	Transfer AssetTransfer   // 资产划转能力
	Receipts ReceiptRegistry // 凭证登记能力，可为空（此时不能开启奖励）
	Emitter  Emitter         // 事件接收方，可为空
	Clock    func() time.Time
}

// Settings 全局配置
type Settings struct {
	Owner          common.Address
	Approver       common.Address // 零地址表示未设置，新活动自动审批
	FeeBps         uint64
	FeeRecipient   common.Address
	ReceiptBaseURI string
}

// Ledger 众筹账本
type Ledger struct {
	mu    sync.Mutex
	guard reentrancyGuard

	custody  common.Address
	transfer AssetTransfer
	receipts ReceiptRegistry
	emitter  Emitter
	now      func() time.Time

	settings  Settings
	campaigns []*Campaign
	accounts  map[accountKey]*account
	reserved  map[common.Address]*big.Int // 按代币统计的托管预留量
	seq       uint64
}

// New 创建账本
func New(p Params) *Ledger {
	l := &Ledger{
		custody:  p.Custody,
		transfer: p.Transfer,
		receipts: p.Receipts,
		emitter:  p.Emitter,
		now:      p.Clock,
		settings: Settings{Owner: p.Owner},
		accounts: make(map[accountKey]*account),
		reserved: make(map[common.Address]*big.Int),
	}
	if l.emitter == nil {
		l.emitter = nopEmitter{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Custody 托管地址
func (l *Ledger) Custody() common.Address {
	return l.custody
}

// execute 执行一次状态转换。
// 外部能力用收到的 ctx 回调账本时视为重入：加入当前转换，失败时只回滚到自己的保存点。
func (l *Ledger) execute(ctx context.Context, op string, guarded bool, fn func(ctx context.Context, tx *txn) error) error {
	if f, ok := frameFrom(ctx); ok && f.ledger == l {
		sp := f.tx.mark()
		if err := l.guarded(guarded, func() error { return fn(ctx, f.tx) }); err != nil {
			f.tx.rollbackTo(sp)
			logger.Warn("Nested %s rejected: %v", op, err)
			return err
		}
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &txn{}
	ctx = context.WithValue(ctx, frameKey{}, &frame{ledger: l, tx: tx})

	defer func() {
		if r := recover(); r != nil {
			tx.rollbackTo(savepoint{})
			panic(r)
		}
	}()

	if err := l.guarded(guarded, func() error { return fn(ctx, tx) }); err != nil {
		tx.rollbackTo(savepoint{})
		logger.Warn("Ledger %s rejected: %v", op, err)
		return err
	}

	for _, ev := range tx.events {
		l.seq++
		ev.Seq = l.seq
		l.emitter.Emit(ev)
	}
	logger.Debug("Ledger %s committed with %d events", op, len(tx.events))
	return nil
}

func (l *Ledger) guarded(guarded bool, fn func() error) error {
	if !guarded {
		return fn()
	}
	if err := l.guard.enter(); err != nil {
		return err
	}
	defer l.guard.exit()
	return fn()
}

// view 只读访问，重入时不再加锁
func (l *Ledger) view(ctx context.Context, fn func()) {
	if f, ok := frameFrom(ctx); ok && f.ledger == l {
		fn()
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// campaign 按 ID 查找，ID 从 1 开始且不复用
func (l *Ledger) campaign(id uint64) (*Campaign, error) {
	if id == 0 || id > uint64(len(l.campaigns)) {
		return nil, ErrInvalidCampaign
	}
	return l.campaigns[id-1], nil
}

// accountFor 取账户，不存在时创建并登记撤销
func (l *Ledger) accountFor(tx *txn, id uint64, holder common.Address) *account {
	key := accountKey{campaignID: id, holder: holder}
	if acc, ok := l.accounts[key]; ok {
		return acc
	}
	acc := newAccount()
	l.accounts[key] = acc
	tx.onUndo(func() { delete(l.accounts, key) })
	return acc
}

func (l *Ledger) peekAccount(id uint64, holder common.Address) *account {
	if acc, ok := l.accounts[accountKey{campaignID: id, holder: holder}]; ok {
		return acc
	}
	return newAccount()
}

func (l *Ledger) reservedFor(token common.Address) *big.Int {
	if v, ok := l.reserved[token]; ok {
		return v
	}
	return new(big.Int)
}

// addReserved 调整代币预留量
func (l *Ledger) addReserved(tx *txn, token common.Address, delta *big.Int) {
	old, existed := l.reserved[token]
	next := new(big.Int).Add(l.reservedFor(token), delta)
	l.reserved[token] = next
	tx.onUndo(func() {
		if existed {
			l.reserved[token] = old
		} else {
			delete(l.reserved, token)
		}
	})
}

func (l *Ledger) event(typ EventType, id uint64, actor common.Address) Event {
	return Event{Type: typ, CampaignID: id, Actor: actor, Time: l.now()}
}

// Campaign 查询活动快照
func (l *Ledger) Campaign(ctx context.Context, id uint64) (Campaign, error) {
	var (
		out Campaign
		err error
	)
	l.view(ctx, func() {
		var c *Campaign
		if c, err = l.campaign(id); err == nil {
			out = c.clone()
		}
	})
	return out, err
}

// CampaignCount 已创建的活动数量
func (l *Ledger) CampaignCount(ctx context.Context) uint64 {
	var n uint64
	l.view(ctx, func() { n = uint64(len(l.campaigns)) })
	return n
}

// Campaigns 所有活动快照
func (l *Ledger) Campaigns(ctx context.Context) []Campaign {
	var out []Campaign
	l.view(ctx, func() {
		out = make([]Campaign, 0, len(l.campaigns))
		for _, c := range l.campaigns {
			out = append(out, c.clone())
		}
	})
	return out
}

// Status 活动当前状态
func (l *Ledger) Status(ctx context.Context, id uint64) (Status, error) {
	var (
		status Status
		err    error
	)
	l.view(ctx, func() {
		var c *Campaign
		if c, err = l.campaign(id); err == nil {
			status = c.StatusAt(l.now())
		}
	})
	return status, err
}

// ContributionOf 贡献者累计金额
func (l *Ledger) ContributionOf(ctx context.Context, id uint64, holder common.Address) (*big.Int, error) {
	var (
		out *big.Int
		err error
	)
	l.view(ctx, func() {
		if _, err = l.campaign(id); err == nil {
			out = copyInt(l.peekAccount(id, holder).contributed)
		}
	})
	return out, err
}

// OwedTokens 贡献者待领取的 ICO 代币
func (l *Ledger) OwedTokens(ctx context.Context, id uint64, holder common.Address) (*big.Int, error) {
	var (
		out *big.Int
		err error
	)
	l.view(ctx, func() {
		if _, err = l.campaign(id); err == nil {
			out = copyInt(l.peekAccount(id, holder).owedTokens)
		}
	})
	return out, err
}

// IsWhitelisted 是否在白名单中
func (l *Ledger) IsWhitelisted(ctx context.Context, id uint64, holder common.Address) (bool, error) {
	var (
		out bool
		err error
	)
	l.view(ctx, func() {
		if _, err = l.campaign(id); err == nil {
			out = l.peekAccount(id, holder).whitelisted
		}
	})
	return out, err
}

// RewardIssued 是否已发放贡献凭证
func (l *Ledger) RewardIssued(ctx context.Context, id uint64, holder common.Address) (bool, error) {
	var (
		out bool
		err error
	)
	l.view(ctx, func() {
		if _, err = l.campaign(id); err == nil {
			out = l.peekAccount(id, holder).rewarded
		}
	})
	return out, err
}

// AvailableTokens ICO 托管池中可被创建者取回的代币
func (l *Ledger) AvailableTokens(ctx context.Context, id uint64) (*big.Int, error) {
	var (
		out *big.Int
		err error
	)
	l.view(ctx, func() {
		var c *Campaign
		if c, err = l.campaign(id); err == nil {
			out = c.Available()
		}
	})
	return out, err
}

// ReservedTokens 某代币在所有活动中的托管预留总量
func (l *Ledger) ReservedTokens(ctx context.Context, token common.Address) *big.Int {
	var out *big.Int
	l.view(ctx, func() { out = copyInt(l.reservedFor(token)) })
	return out
}

// Settings 当前全局配置
func (l *Ledger) Settings(ctx context.Context) Settings {
	var out Settings
	l.view(ctx, func() { out = l.settings })
	return out
}
