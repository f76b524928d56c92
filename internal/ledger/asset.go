package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind 资产类型
type AssetKind uint8

const (
	AssetNative   AssetKind = iota // 原生币
	AssetFungible                  // 同质化代币
)

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetFungible:
		return "fungible"
	default:
		return fmt.Sprintf("asset(%d)", uint8(k))
	}
}

// Asset 活动接受的资产，Token 仅在 AssetFungible 时有意义
type Asset struct {
	Kind  AssetKind
	Token common.Address
}

// NativeAsset 原生币资产
func NativeAsset() Asset {
	return Asset{Kind: AssetNative}
}

// FungibleAsset 代币资产
func FungibleAsset(token common.Address) Asset {
	return Asset{Kind: AssetFungible, Token: token}
}

// IsNative 是否为原生币
func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return "erc20:" + a.Token.Hex()
}

// valid 代币资产必须带有非零合约地址
func (a Asset) valid() bool {
	switch a.Kind {
	case AssetNative:
		return a.Token == (common.Address{})
	case AssetFungible:
		return a.Token != (common.Address{})
	default:
		return false
	}
}

// AssetTransfer 资产划转能力，由外部协作方实现。
// PullFrom 把 payer 的资产转入账本托管地址（原生币时代表随调用附带的价值），
// PushTo 从托管地址转出，BalanceOf 查询持有量。
//
// 调用发生在账本持锁期间。实现若要回调账本，必须传入收到的 ctx：
// 用新的 ctx（例如 context.Background）回调会在账本锁上永久阻塞。
// 回滚补偿通过 OnRollback(ctx, fn) 登记。
type AssetTransfer interface {
	PullFrom(ctx context.Context, asset Asset, payer common.Address, amount *big.Int) error
	PushTo(ctx context.Context, asset Asset, recipient common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, asset Asset, holder common.Address) (*big.Int, error)
}

// ReceiptRegistry 贡献凭证登记能力。
// Issue 同样在账本持锁期间调用，回调账本只能使用收到的 ctx。
type ReceiptRegistry interface {
	Issue(ctx context.Context, owner common.Address, campaignID uint64) (uint64, error)
	OwnerOf(receiptID uint64) (common.Address, error)
	SetBaseURI(uri string)
}
