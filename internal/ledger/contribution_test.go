package ledger_test

import (
	"testing"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributeNative(t *testing.T) {
	f := newFixture(t)
	id := f.createNative(eth(3))

	f.mustContribute(alice, id, eth(1))
	f.mustContribute(alice, id, eth(1))
	f.mustContribute(bob, id, milli(500))

	c := f.campaign(id)
	assert.Equal(t, 0, c.Raised.Cmp(milli(2500)))

	got, err := f.ledger.ContributionOf(ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(eth(2)))
	assert.Equal(t, 0, f.balance(ledger.NativeAsset(), custody).Cmp(milli(2500)))

	last := f.events[len(f.events)-1]
	assert.Equal(t, ledger.EventContributed, last.Type)
	assert.Equal(t, bob, last.Actor)
	assert.Equal(t, 0, last.Amount.Cmp(milli(500)))
}

func TestContributeFungiblePullsAllowance(t *testing.T) {
	f := newFixture(t)
	asset := ledger.FungibleAsset(token)
	id := f.create(ledger.CampaignParams{Goal: eth(10), Asset: asset})

	f.bank.Mint(asset, alice, eth(5))
	err := f.ledger.Contribute(ctx, alice, id, eth(5))
	assert.ErrorIs(t, err, ledger.ErrTransferFailed)

	// 授权不足时整笔回滚
	c := f.campaign(id)
	assert.Zero(t, c.Raised.Sign())
	got, _ := f.ledger.ContributionOf(ctx, id, alice)
	assert.Zero(t, got.Sign())

	f.bank.Approve(token, alice, eth(5))
	require.NoError(t, f.ledger.Contribute(ctx, alice, id, eth(5)))
	assert.Equal(t, 0, f.balance(asset, custody).Cmp(eth(5)))
	assert.Zero(t, f.balance(asset, alice).Sign())
	assert.Zero(t, f.bank.Allowance(token, alice).Sign())
}

func TestContributeErrorPrecedence(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.SetApprover(ctx, owner, approver))

	id := f.create(ledger.CampaignParams{
		Goal:             eth(10),
		Asset:            ledger.NativeAsset(),
		MinContribution:  eth(1),
		WhitelistEnabled: true,
	})

	// 未审批优先于金额与白名单
	assert.ErrorIs(t, f.contribute(alice, id, eth(0)), ledger.ErrCampaignNotApproved)
	require.NoError(t, f.ledger.Approve(ctx, approver, id))

	assert.ErrorIs(t, f.contribute(alice, id, eth(0)), ledger.ErrZeroAmount)
	assert.ErrorIs(t, f.contribute(alice, id, milli(999)), ledger.ErrBelowMinimum)
	assert.ErrorIs(t, f.contribute(alice, id, eth(1)), ledger.ErrNotWhitelisted)

	// 到期优先于审批
	f.advance(time.Hour)
	assert.ErrorIs(t, f.contribute(alice, id, eth(0)), ledger.ErrCampaignEnded)

	cancelled := f.create(ledger.CampaignParams{Goal: eth(1), Asset: ledger.NativeAsset()})
	require.NoError(t, f.ledger.Cancel(ctx, creator, cancelled))
	f.advance(2 * time.Hour)
	assert.ErrorIs(t, f.contribute(alice, cancelled, eth(0)), ledger.ErrCampaignCancelled)

	assert.ErrorIs(t, f.ledger.Contribute(ctx, alice, 42, eth(1)), ledger.ErrInvalidCampaign)
}

func TestWhitelistGate(t *testing.T) {
	f := newFixture(t)
	id := f.create(ledger.CampaignParams{Goal: eth(10), Asset: ledger.NativeAsset(), WhitelistEnabled: true})

	assert.ErrorIs(t, f.contribute(alice, id, eth(1)), ledger.ErrNotWhitelisted)
	assert.ErrorIs(t, f.ledger.SetWhitelist(ctx, alice, id, alice, true), ledger.ErrNotCreator)

	require.NoError(t, f.ledger.SetWhitelist(ctx, creator, id, alice, true))
	require.NoError(t, f.ledger.SetWhitelist(ctx, creator, id, alice, true))
	ok, err := f.ledger.IsWhitelisted(ctx, id, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	f.mustContribute(alice, id, eth(1))

	require.NoError(t, f.ledger.SetWhitelist(ctx, creator, id, alice, false))
	assert.ErrorIs(t, f.contribute(alice, id, eth(1)), ledger.ErrNotWhitelisted)
}

func TestWhitelistBatchEmitsPerAddress(t *testing.T) {
	f := newFixture(t)
	id := f.create(ledger.CampaignParams{Goal: eth(10), Asset: ledger.NativeAsset(), WhitelistEnabled: true})
	f.events = nil

	holders := []common.Address{alice, bob, carol}
	require.NoError(t, f.ledger.SetWhitelistBatch(ctx, creator, id, holders, true))

	require.Len(t, f.events, 3)
	for i, ev := range f.events {
		assert.Equal(t, ledger.EventWhitelistUpdated, ev.Type)
		assert.Equal(t, holders[i], ev.Recipient)
		assert.True(t, ev.Flag)
	}
	for _, h := range holders {
		f.mustContribute(h, id, eth(1))
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	funded := f.createNative(eth(5))
	f.mustContribute(alice, funded, eth(1))
	assert.ErrorIs(t, f.ledger.Cancel(ctx, creator, funded), ledger.ErrCampaignHasFunds)

	id := f.createNative(eth(5))
	assert.ErrorIs(t, f.ledger.Cancel(ctx, alice, id), ledger.ErrNotCreator)
	require.NoError(t, f.ledger.Cancel(ctx, creator, id))
	assert.ErrorIs(t, f.ledger.Cancel(ctx, creator, id), ledger.ErrAlreadyCancelled)

	assert.ErrorIs(t, f.contribute(alice, id, eth(1)), ledger.ErrCampaignCancelled)
	assert.ErrorIs(t, f.ledger.Withdraw(ctx, creator, id), ledger.ErrCampaignCancelled)
	f.advance(2 * time.Hour)
	assert.ErrorIs(t, f.ledger.Refund(ctx, alice, id), ledger.ErrCampaignCancelled)

	c := f.campaign(id)
	assert.True(t, c.Cancelled)
	assert.False(t, c.Withdrawn)

	done := f.createNative(eth(1))
	f.mustContribute(alice, done, eth(1))
	require.NoError(t, f.ledger.Withdraw(ctx, creator, done))
	assert.ErrorIs(t, f.ledger.Cancel(ctx, creator, done), ledger.ErrAlreadyWithdrawn)
}

func TestRewardIssuedOncePerContributor(t *testing.T) {
	f := newFixture(t)
	id := f.create(ledger.CampaignParams{Goal: eth(10), Asset: ledger.NativeAsset(), RewardEnabled: true})
	plain := f.createNative(eth(10))

	f.mustContribute(alice, id, eth(1))
	f.mustContribute(alice, id, eth(1))
	f.mustContribute(bob, id, eth(1))
	f.mustContribute(alice, plain, eth(1))

	issued, err := f.ledger.RewardIssued(ctx, id, alice)
	require.NoError(t, err)
	assert.True(t, issued)
	issued, _ = f.ledger.RewardIssued(ctx, plain, alice)
	assert.False(t, issued)

	require.Len(t, f.receipts.ReceiptsOf(alice), 1)
	require.Len(t, f.receipts.ReceiptsOf(bob), 1)

	holder, err := f.receipts.OwnerOf(1)
	require.NoError(t, err)
	assert.Equal(t, alice, holder)

	var rewards []ledger.Event
	for _, ev := range f.events {
		if ev.Type == ledger.EventRewardIssued {
			rewards = append(rewards, ev)
		}
	}
	require.Len(t, rewards, 2)
	assert.Equal(t, uint64(1), rewards[0].ReceiptID)
	assert.Equal(t, uint64(2), rewards[1].ReceiptID)
}

func TestRewardRolledBackWithFailedContribution(t *testing.T) {
	f := newFixture(t)
	asset := ledger.FungibleAsset(token)
	id := f.create(ledger.CampaignParams{Goal: eth(10), Asset: asset, RewardEnabled: true})

	// 没有授权，划转失败
	require.ErrorIs(t, f.ledger.Contribute(ctx, alice, id, eth(1)), ledger.ErrTransferFailed)

	issued, _ := f.ledger.RewardIssued(ctx, id, alice)
	assert.False(t, issued)
	assert.Empty(t, f.receipts.ReceiptsOf(alice))

	f.mustContribute(alice, id, eth(1))
	rc := f.receipts.ReceiptsOf(alice)
	require.Len(t, rc, 1)
	assert.Equal(t, uint64(1), rc[0].ID)
}
