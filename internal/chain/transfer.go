package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// compensateTimeout 回滚补偿交易的等待上限
const compensateTimeout = 2 * time.Minute

// Transfer 链上资产划转，实现 ledger.AssetTransfer。
// 代币通过 ERC20 transferFrom/transfer 划转；原生币转入以扫描到的入账为准，转出由托管账户直接发送。
type Transfer struct {
	client   *Client
	erc20    abi.ABI
	deposits *DepositBook
}

// NewTransfer 创建链上划转
func NewTransfer(client *Client, deposits *DepositBook) (*Transfer, error) {
	parsed, err := parseERC20()
	if err != nil {
		return nil, err
	}
	return &Transfer{client: client, erc20: parsed, deposits: deposits}, nil
}

// token 绑定代币合约
func (t *Transfer) token(addr common.Address) *bind.BoundContract {
	return bind.NewBoundContract(addr, t.erc20, t.client.eth, t.client.eth, t.client.eth)
}

// PullFrom 实现 ledger.AssetTransfer
func (t *Transfer) PullFrom(ctx context.Context, asset ledger.Asset, payer common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}

	if asset.IsNative() {
		if err := t.deposits.Debit(payer, amount); err != nil {
			return err
		}
		ledger.OnRollback(ctx, func() { t.deposits.Credit(payer, amount) })
		return nil
	}

	if err := t.send(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return t.token(asset.Token).Transact(opts, "transferFrom", payer, t.client.Address(), amount)
	}); err != nil {
		return fmt.Errorf("transferFrom %s: %w", asset, err)
	}
	ledger.OnRollback(ctx, func() { t.compensate(asset, payer, amount) })
	return nil
}

// PushTo 实现 ledger.AssetTransfer
func (t *Transfer) PushTo(ctx context.Context, asset ledger.Asset, recipient common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := t.push(ctx, asset, recipient, amount); err != nil {
		return err
	}
	// 已转出的资产无法由托管账户收回
	ledger.OnRollback(ctx, func() {
		logger.Error("Ledger rolled back after pushing %s %s to %s, manual reconciliation required", amount, asset, recipient.Hex())
	})
	return nil
}

// BalanceOf 实现 ledger.AssetTransfer
func (t *Transfer) BalanceOf(ctx context.Context, asset ledger.Asset, holder common.Address) (*big.Int, error) {
	if asset.IsNative() {
		return t.client.eth.BalanceAt(ctx, holder, nil)
	}
	return callUint(t.token(asset.Token), &bind.CallOpts{Context: ctx}, "balanceOf", holder)
}

func (t *Transfer) push(ctx context.Context, asset ledger.Asset, recipient common.Address, amount *big.Int) error {
	if asset.IsNative() {
		err := t.send(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
			opts.Value = amount
			// 绑定合约的估算要求目标有代码，普通账户需要先估算
			if opts.GasLimit == 0 {
				gas, err := t.client.eth.EstimateGas(opts.Context, ethereum.CallMsg{From: opts.From, To: &recipient, Value: amount})
				if err != nil {
					return nil, fmt.Errorf("estimate gas: %w", err)
				}
				opts.GasLimit = gas
			}
			return bind.NewBoundContract(recipient, abi.ABI{}, t.client.eth, t.client.eth, t.client.eth).Transfer(opts)
		})
		if err != nil {
			return fmt.Errorf("send native to %s: %w", recipient.Hex(), err)
		}
		return nil
	}

	if err := t.send(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return t.token(asset.Token).Transact(opts, "transfer", recipient, amount)
	}); err != nil {
		return fmt.Errorf("transfer %s to %s: %w", asset, recipient.Hex(), err)
	}
	return nil
}

// send 签名发送并等待上链，广播之后的等待不受 ctx 取消影响
func (t *Transfer) send(ctx context.Context, build func(opts *bind.TransactOpts) (*types.Transaction, error)) error {
	opts, err := t.client.transactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := build(opts)
	if err != nil {
		return err
	}
	logger.Debug("Sent tx %s", tx.Hash().Hex())
	return t.client.waitMined(ctx, tx)
}

// compensate 退回已转入的代币，原状态转换的 ctx 可能已取消
func (t *Transfer) compensate(asset ledger.Asset, payer common.Address, amount *big.Int) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()
	if err := t.push(ctx, asset, payer, amount); err != nil {
		logger.Error("Failed to return %s %s to %s after rollback: %v", amount, asset, payer.Hex(), err)
		return
	}
	logger.Warn("Returned %s %s to %s after rollback", amount, asset, payer.Hex())
}
