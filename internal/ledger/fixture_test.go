package ledger_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/receipt"
	"github.com/blues/cfl/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	custody   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	creator   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	carol     = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	feeSink   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	approver  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	token     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	saleToken = common.HexToAddress("0x00000000000000000000000000000000000000f2")
)

var ctx = context.Background()

// eth n 个完整单位（18 位精度）
func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// milli n/1000 个完整单位
func milli(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}

type fixture struct {
	t        *testing.T
	now      time.Time
	ledger   *ledger.Ledger
	bank     *vault.Bank
	receipts *receipt.Registry
	events   []ledger.Event
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith wrap 可以替换账本看到的资产划转能力
func newFixtureWith(t *testing.T, wrap func(ledger.AssetTransfer) ledger.AssetTransfer) *fixture {
	f := &fixture{
		t:        t,
		now:      time.Unix(1_700_000_000, 0),
		bank:     vault.NewBank(custody),
		receipts: receipt.NewRegistry(),
	}
	var transfer ledger.AssetTransfer = f.bank
	if wrap != nil {
		transfer = wrap(f.bank)
	}
	f.ledger = ledger.New(ledger.Params{
		Owner:    owner,
		Custody:  custody,
		Transfer: transfer,
		Receipts: f.receipts,
		Emitter:  ledger.EmitterFunc(func(ev ledger.Event) { f.events = append(f.events, ev) }),
		Clock:    func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) create(p ledger.CampaignParams) uint64 {
	f.t.Helper()
	if p.Deadline.IsZero() {
		p.Deadline = f.now.Add(time.Hour)
	}
	id, err := f.ledger.CreateCampaign(ctx, creator, p)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) createNative(goal *big.Int) uint64 {
	return f.create(ledger.CampaignParams{Goal: goal, Asset: ledger.NativeAsset()})
}

func (f *fixture) createIco(goal, price *big.Int) uint64 {
	f.t.Helper()
	id, err := f.ledger.CreateIcoCampaign(ctx, creator, ledger.IcoParams{
		Goal:       goal,
		Deadline:   f.now.Add(time.Hour),
		SaleToken:  saleToken,
		TokenPrice: price,
	})
	require.NoError(f.t, err)
	return id
}

// give 给地址发放资产，代币同时授权给托管地址
func (f *fixture) give(asset ledger.Asset, who common.Address, amount *big.Int) {
	f.bank.Mint(asset, who, amount)
	if !asset.IsNative() {
		f.bank.Approve(asset.Token, who, new(big.Int).Add(f.bank.Allowance(asset.Token, who), amount))
	}
}

func (f *fixture) contribute(who common.Address, id uint64, amount *big.Int) error {
	c, err := f.ledger.Campaign(ctx, id)
	require.NoError(f.t, err)
	f.give(c.Asset, who, amount)
	return f.ledger.Contribute(ctx, who, id, amount)
}

func (f *fixture) mustContribute(who common.Address, id uint64, amount *big.Int) {
	f.t.Helper()
	require.NoError(f.t, f.contribute(who, id, amount))
}

func (f *fixture) balance(asset ledger.Asset, who common.Address) *big.Int {
	b, err := f.bank.BalanceOf(ctx, asset, who)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) campaign(id uint64) ledger.Campaign {
	f.t.Helper()
	c, err := f.ledger.Campaign(ctx, id)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) eventTypes() []ledger.EventType {
	out := make([]ledger.EventType, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}
