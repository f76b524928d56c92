package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/blues/cfl/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// Bank 进程内资产金库，模拟原生币余额与 ERC20 的 approve/transferFrom 语义。
// 在账本状态转换内发生的划转会登记补偿，转换失败时自动冲回。
type Bank struct {
	mu         sync.Mutex
	custody    common.Address
	balances   map[ledger.Asset]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int // token -> owner -> 授权给托管地址的额度
}

// NewBank 创建金库，custody 为账本托管地址
func NewBank(custody common.Address) *Bank {
	return &Bank{
		custody:    custody,
		balances:   make(map[ledger.Asset]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint 给 holder 增发资产
func (b *Bank) Mint(asset ledger.Asset, holder common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(asset, holder, amount)
}

// Approve 设置 owner 授权给托管地址的代币额度
func (b *Bank) Approve(token, owner common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setAllowance(token, owner, new(big.Int).Set(amount))
}

// Allowance 剩余授权额度
func (b *Bank) Allowance(token, owner common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.allowance(token, owner))
}

// BalanceOf 实现 ledger.AssetTransfer
func (b *Bank) BalanceOf(_ context.Context, asset ledger.Asset, holder common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balance(asset, holder)), nil
}

// PullFrom 实现 ledger.AssetTransfer；代币需要预先授权
func (b *Bank) PullFrom(ctx context.Context, asset ledger.Asset, payer common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	if !asset.IsNative() {
		allowance := b.allowance(asset.Token, payer)
		if allowance.Cmp(amount) < 0 {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s has %s approved, needs %s", ErrInsufficientAllowance, payer.Hex(), allowance, amount)
		}
		b.setAllowance(asset.Token, payer, new(big.Int).Sub(allowance, amount))
	}
	if err := b.move(asset, payer, b.custody, amount); err != nil {
		if !asset.IsNative() {
			b.setAllowance(asset.Token, payer, new(big.Int).Add(b.allowance(asset.Token, payer), amount))
		}
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	ledger.OnRollback(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = b.move(asset, b.custody, payer, amount)
		if !asset.IsNative() {
			b.setAllowance(asset.Token, payer, new(big.Int).Add(b.allowance(asset.Token, payer), amount))
		}
	})
	return nil
}

// PushTo 实现 ledger.AssetTransfer
func (b *Bank) PushTo(ctx context.Context, asset ledger.Asset, recipient common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	err := b.move(asset, b.custody, recipient, amount)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	ledger.OnRollback(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = b.move(asset, recipient, b.custody, amount)
	})
	return nil
}

func (b *Bank) move(asset ledger.Asset, from, to common.Address, amount *big.Int) error {
	balance := b.balance(asset, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), balance, asset, amount)
	}
	b.add(asset, from, new(big.Int).Neg(amount))
	b.add(asset, to, amount)
	return nil
}

func (b *Bank) add(asset ledger.Asset, holder common.Address, delta *big.Int) {
	if b.balances[asset] == nil {
		b.balances[asset] = make(map[common.Address]*big.Int)
	}
	b.balances[asset][holder] = new(big.Int).Add(b.balance(asset, holder), delta)
}

func (b *Bank) balance(asset ledger.Asset, holder common.Address) *big.Int {
	if v, ok := b.balances[asset][holder]; ok {
		return v
	}
	return new(big.Int)
}

func (b *Bank) allowance(token, owner common.Address) *big.Int {
	if v, ok := b.allowances[token][owner]; ok {
		return v
	}
	return new(big.Int)
}

func (b *Bank) setAllowance(token, owner common.Address, v *big.Int) {
	if b.allowances[token] == nil {
		b.allowances[token] = make(map[common.Address]*big.Int)
	}
	b.allowances[token][owner] = v
}
