package ledger_test

import (
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) deposit(id uint64, amount *big.Int) {
	f.t.Helper()
	f.give(ledger.FungibleAsset(saleToken), creator, amount)
	require.NoError(f.t, f.ledger.DepositTokens(ctx, creator, id, amount))
}

func TestIcoContributeAndClaim(t *testing.T) {
	f := newFixture(t)
	sale := ledger.FungibleAsset(saleToken)
	id := f.createIco(eth(1), eth(1000))
	f.deposit(id, eth(2000))

	f.mustContribute(alice, id, milli(500))
	f.mustContribute(bob, id, milli(500))

	owed, err := f.ledger.OwedTokens(ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, owed.Cmp(eth(500)))

	c := f.campaign(id)
	assert.Equal(t, 0, c.TokensSold.Cmp(eth(1000)))
	assert.True(t, c.GoalReached())
	available, _ := f.ledger.AvailableTokens(ctx, id)
	assert.Equal(t, 0, available.Cmp(eth(1000)))

	require.NoError(t, f.ledger.ClaimTokens(ctx, alice, id))
	require.NoError(t, f.ledger.ClaimTokens(ctx, bob, id))
	assert.Equal(t, 0, f.balance(sale, alice).Cmp(eth(500)))
	assert.Equal(t, 0, f.balance(sale, bob).Cmp(eth(500)))
	assert.ErrorIs(t, f.ledger.ClaimTokens(ctx, alice, id), ledger.ErrNoContribution)

	c = f.campaign(id)
	assert.Equal(t, 0, c.TokensClaimed.Cmp(eth(1000)))
	assert.Equal(t, 0, c.Pool.Cmp(eth(1000)))
	assert.Equal(t, 0, f.ledger.ReservedTokens(ctx, saleToken).Cmp(eth(1000)))

	var claimed []ledger.Event
	for _, ev := range f.events {
		if ev.Type == ledger.EventIcoContributed {
			assert.Equal(t, 0, ev.Tokens.Cmp(eth(500)))
		}
		if ev.Type == ledger.EventTokensClaimed {
			claimed = append(claimed, ev)
		}
	}
	assert.Len(t, claimed, 2)

	// 达标后创建者取回剩余代币与募集资金
	require.NoError(t, f.ledger.WithdrawUnsoldTokens(ctx, creator, id))
	assert.Equal(t, 0, f.balance(sale, creator).Cmp(eth(1000)))
	assert.ErrorIs(t, f.ledger.WithdrawUnsoldTokens(ctx, creator, id), ledger.ErrNoTokensAvailable)
	require.NoError(t, f.ledger.Withdraw(ctx, creator, id))
	assert.Equal(t, 0, f.balance(ledger.NativeAsset(), creator).Cmp(eth(1)))
	assert.Zero(t, f.ledger.ReservedTokens(ctx, saleToken).Sign())
}

func TestIcoContributeWithoutTokens(t *testing.T) {
	f := newFixture(t)
	id := f.createIco(eth(1), eth(1000))

	err := f.contribute(alice, id, milli(500))
	require.ErrorIs(t, err, ledger.ErrInsufficientIcoTokens)
	assert.Zero(t, f.campaign(id).Raised.Sign())
	assert.Zero(t, f.balance(ledger.NativeAsset(), custody).Sign())

	f.deposit(id, eth(100))
	assert.ErrorIs(t, f.contribute(alice, id, milli(101)), ledger.ErrInsufficientIcoTokens)
	f.mustContribute(alice, id, milli(100))

	// 按价格折算为 0 个代币
	cheap := f.createIco(eth(1), big.NewInt(1))
	f.deposit(cheap, eth(1))
	assert.ErrorIs(t, f.contribute(bob, cheap, big.NewInt(1)), ledger.ErrZeroAmount)
	f.mustContribute(bob, cheap, eth(1))
	owed, err := f.ledger.OwedTokens(ctx, cheap, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), owed.Int64())
}

func TestIcoClaimErrors(t *testing.T) {
	f := newFixture(t)
	plain := f.createNative(eth(1))
	assert.ErrorIs(t, f.ledger.ClaimTokens(ctx, alice, plain), ledger.ErrNotIcoCampaign)
	assert.ErrorIs(t, f.ledger.DepositTokens(ctx, creator, plain, eth(1)), ledger.ErrNotIcoCampaign)
	assert.ErrorIs(t, f.ledger.WithdrawUnsoldTokens(ctx, creator, plain), ledger.ErrNotIcoCampaign)

	id := f.createIco(eth(2), eth(10))
	assert.ErrorIs(t, f.ledger.DepositTokens(ctx, alice, id, eth(1)), ledger.ErrNotCreator)
	assert.ErrorIs(t, f.ledger.DepositTokens(ctx, creator, id, new(big.Int)), ledger.ErrZeroAmount)
	assert.ErrorIs(t, f.ledger.DepositTokens(ctx, creator, id, eth(1)), ledger.ErrTransferFailed)
	assert.Zero(t, f.campaign(id).Pool.Sign())

	f.deposit(id, eth(100))
	f.mustContribute(alice, id, eth(1))
	assert.ErrorIs(t, f.ledger.ClaimTokens(ctx, alice, id), ledger.ErrGoalNotReached)

	f.mustContribute(bob, id, eth(1))
	assert.ErrorIs(t, f.ledger.ClaimTokens(ctx, carol, id), ledger.ErrNoContribution)
	require.NoError(t, f.ledger.ClaimTokens(ctx, alice, id))
}

func TestIcoRefundReleasesTokens(t *testing.T) {
	f := newFixture(t)
	id := f.createIco(eth(10), eth(100))
	f.deposit(id, eth(1000))

	f.mustContribute(alice, id, eth(2))
	f.mustContribute(bob, id, eth(3))
	available, _ := f.ledger.AvailableTokens(ctx, id)
	assert.Equal(t, 0, available.Cmp(eth(500)))

	assert.ErrorIs(t, f.ledger.WithdrawUnsoldTokens(ctx, creator, id), ledger.ErrDeadlineNotReached)

	f.advance(time.Hour)
	require.NoError(t, f.ledger.Refund(ctx, alice, id))

	c := f.campaign(id)
	assert.Equal(t, 0, c.TokensSold.Cmp(eth(300)))
	owed, _ := f.ledger.OwedTokens(ctx, id, alice)
	assert.Zero(t, owed.Sign())
	assert.Equal(t, 0, f.balance(ledger.NativeAsset(), alice).Cmp(eth(2)))
	assert.ErrorIs(t, f.ledger.ClaimTokens(ctx, bob, id), ledger.ErrGoalNotReached)

	refund := f.events[len(f.events)-1]
	assert.Equal(t, ledger.EventRefunded, refund.Type)
	assert.Equal(t, 0, refund.Tokens.Cmp(eth(200)))

	// bob 仍持有 300 个代币的预留
	require.NoError(t, f.ledger.WithdrawUnsoldTokens(ctx, creator, id))
	assert.Equal(t, 0, f.balance(ledger.FungibleAsset(saleToken), creator).Cmp(eth(700)))

	require.NoError(t, f.ledger.Refund(ctx, bob, id))
	require.NoError(t, f.ledger.WithdrawUnsoldTokens(ctx, creator, id))
	assert.Equal(t, 0, f.balance(ledger.FungibleAsset(saleToken), creator).Cmp(eth(1000)))
	assert.Zero(t, f.ledger.ReservedTokens(ctx, saleToken).Sign())
}

func TestWithdrawUnsoldAfterCancel(t *testing.T) {
	f := newFixture(t)
	id := f.createIco(eth(10), eth(100))
	f.deposit(id, eth(50))

	assert.ErrorIs(t, f.ledger.WithdrawUnsoldTokens(ctx, alice, id), ledger.ErrNotCreator)
	require.NoError(t, f.ledger.Cancel(ctx, creator, id))
	require.NoError(t, f.ledger.WithdrawUnsoldTokens(ctx, creator, id))
	assert.Equal(t, 0, f.balance(ledger.FungibleAsset(saleToken), creator).Cmp(eth(50)))
	assert.Zero(t, f.campaign(id).Pool.Sign())
}

// 随机操作序列下已售代币不超过托管池
func TestIcoNeverOversells(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))
	buyers := []common.Address{alice, bob, carol}

	id := f.createIco(eth(1000), eth(3))
	for i := 0; i < 200; i++ {
		switch rng.Intn(4) {
		case 0:
			f.deposit(id, big.NewInt(rng.Int63n(1e18)+1))
		default:
			who := buyers[rng.Intn(len(buyers))]
			err := f.contribute(who, id, big.NewInt(rng.Int63n(5e17)+1))
			if err != nil {
				require.ErrorIs(t, err, ledger.ErrInsufficientIcoTokens)
			}
		}

		c := f.campaign(id)
		require.LessOrEqual(t, c.Owed().Cmp(c.Pool), 0, "step %d", i)
		require.Equal(t, 0, f.ledger.ReservedTokens(ctx, saleToken).Cmp(c.Pool))
		require.Equal(t, 0, f.balance(ledger.FungibleAsset(saleToken), custody).Cmp(c.Pool))
	}

	var owed = new(big.Int)
	for _, who := range buyers {
		v, err := f.ledger.OwedTokens(ctx, id, who)
		require.NoError(t, err)
		owed.Add(owed, v)
	}
	assert.Equal(t, 0, owed.Cmp(f.campaign(id).TokensSold))
}
