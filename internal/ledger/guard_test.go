package ledger_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundReentryRejected(t *testing.T) {
	var (
		f      *fixture
		nested []error
	)
	f = newFixtureWith(t, func(inner ledger.AssetTransfer) ledger.AssetTransfer {
		return &scriptedTransfer{
			AssetTransfer: inner,
			push: func(ctx context.Context, asset ledger.Asset, recipient common.Address, amount *big.Int) error {
				if recipient == alice {
					nested = append(nested, f.ledger.Refund(ctx, alice, 1))
				}
				return inner.PushTo(ctx, asset, recipient, amount)
			},
		}
	})
	native := ledger.NativeAsset()
	id := f.createNative(eth(10))
	f.mustContribute(alice, id, eth(1))
	f.mustContribute(bob, id, eth(2))
	f.advance(time.Hour)

	require.NoError(t, f.ledger.Refund(ctx, alice, id))
	require.Len(t, nested, 1)
	assert.ErrorIs(t, nested[0], ledger.ErrReentrantCall)

	assert.Equal(t, 0, f.balance(native, alice).Cmp(eth(1)))
	assert.Equal(t, 0, f.balance(native, custody).Cmp(eth(2)))

	refunds := 0
	for _, ev := range f.events {
		if ev.Type == ledger.EventRefunded {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
	assert.ErrorIs(t, f.ledger.Refund(ctx, alice, id), ledger.ErrNoContribution)
}

func TestReentryFailurePropagatesRollback(t *testing.T) {
	var f *fixture
	f = newFixtureWith(t, func(inner ledger.AssetTransfer) ledger.AssetTransfer {
		return &scriptedTransfer{
			AssetTransfer: inner,
			push: func(ctx context.Context, asset ledger.Asset, recipient common.Address, amount *big.Int) error {
				if err := inner.PushTo(ctx, asset, recipient, amount); err != nil {
					return err
				}
				// 收款方把重入失败当作自身失败
				return f.ledger.Withdraw(ctx, creator, 1)
			},
		}
	})
	native := ledger.NativeAsset()
	id := f.createNative(eth(1))
	f.mustContribute(alice, id, eth(1))
	before := len(f.events)

	err := f.ledger.Withdraw(ctx, creator, id)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.Contains(t, err.Error(), ledger.ErrReentrantCall.Error())

	assert.False(t, f.campaign(id).Withdrawn)
	assert.Zero(t, f.balance(native, creator).Sign())
	assert.Equal(t, 0, f.balance(native, custody).Cmp(eth(1)))
	assert.Len(t, f.events, before)
}

func TestContributeReentryFromPull(t *testing.T) {
	var (
		f      *fixture
		nested error
	)
	f = newFixtureWith(t, func(inner ledger.AssetTransfer) ledger.AssetTransfer {
		return &scriptedTransfer{
			AssetTransfer: inner,
			pull: func(ctx context.Context, asset ledger.Asset, payer common.Address, amount *big.Int) error {
				if payer == bob {
					nested = f.ledger.Contribute(ctx, bob, 1, amount)
				}
				return inner.PullFrom(ctx, asset, payer, amount)
			},
		}
	})
	id := f.createNative(eth(10))
	f.mustContribute(bob, id, eth(1))

	assert.ErrorIs(t, nested, ledger.ErrReentrantCall)
	got, err := f.ledger.ContributionOf(ctx, id, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(eth(1)))
	assert.Equal(t, 0, f.campaign(id).Raised.Cmp(eth(1)))
}

func TestNestedUnguardedCallJoinsTransition(t *testing.T) {
	var (
		f    *fixture
		seen ledger.Campaign
		fail bool
	)
	f = newFixtureWith(t, func(inner ledger.AssetTransfer) ledger.AssetTransfer {
		return &scriptedTransfer{
			AssetTransfer: inner,
			push: func(ctx context.Context, asset ledger.Asset, recipient common.Address, amount *big.Int) error {
				// 回调中读取不会死锁，且能看到进行中的状态
				c, err := f.ledger.Campaign(ctx, 1)
				if err != nil {
					return err
				}
				seen = c
				if err := f.ledger.SetWhitelist(ctx, creator, 1, carol, true); err != nil {
					return err
				}
				// 非创建者调用失败只回滚自身
				if err := f.ledger.Cancel(ctx, alice, 1); err == nil {
					t.Error("nested cancel by non-creator succeeded")
				}
				if fail {
					return assert.AnError
				}
				return inner.PushTo(ctx, asset, recipient, amount)
			},
		}
	})
	id := f.createNative(eth(1))
	f.mustContribute(alice, id, eth(1))

	fail = true
	require.Error(t, f.ledger.Withdraw(ctx, creator, id))
	assert.True(t, seen.Withdrawn)
	ok, _ := f.ledger.IsWhitelisted(ctx, id, carol)
	assert.False(t, ok)

	fail = false
	f.events = nil
	require.NoError(t, f.ledger.Withdraw(ctx, creator, id))
	ok, _ = f.ledger.IsWhitelisted(ctx, id, carol)
	assert.True(t, ok)
	assert.Equal(t, []ledger.EventType{ledger.EventWithdrawn, ledger.EventWhitelistUpdated}, f.eventTypes())
}

func TestCollaboratorViewsWithReceivedContext(t *testing.T) {
	var (
		f    *fixture
		seen []ledger.Campaign
	)
	f = newFixtureWith(t, func(inner ledger.AssetTransfer) ledger.AssetTransfer {
		return &scriptedTransfer{
			AssetTransfer: inner,
			push: func(ctx context.Context, asset ledger.Asset, recipient common.Address, amount *big.Int) error {
				c, err := f.ledger.Campaign(ctx, 1)
				if err != nil {
					return err
				}
				seen = append(seen, c)
				return inner.PushTo(ctx, asset, recipient, amount)
			},
		}
	})
	id := f.createNative(eth(1))
	f.mustContribute(alice, id, eth(1))

	done := make(chan error, 1)
	go func() { done <- f.ledger.Withdraw(ctx, creator, id) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("withdraw blocked on a collaborator view")
	}

	// 回调看到的是转换中的状态
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Withdrawn)
}

func TestEventSequenceIsContiguous(t *testing.T) {
	f := newFixture(t)
	id := f.createNative(eth(5))
	_ = f.contribute(alice, id, new(big.Int))
	f.mustContribute(alice, id, eth(1))
	_ = f.ledger.Withdraw(ctx, creator, id)
	f.mustContribute(bob, id, eth(4))
	require.NoError(t, f.ledger.Withdraw(ctx, creator, id))

	for i, ev := range f.events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestConcurrentContributions(t *testing.T) {
	f := newFixture(t)
	id := f.createNative(eth(1000))
	buyers := []common.Address{alice, bob, carol}
	for _, who := range buyers {
		f.bank.Mint(ledger.NativeAsset(), who, eth(100))
	}

	var wg sync.WaitGroup
	for _, who := range buyers {
		wg.Add(1)
		go func(who common.Address) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, f.ledger.Contribute(ctx, who, id, eth(1)))
			}
		}(who)
	}
	wg.Wait()

	assert.Equal(t, 0, f.campaign(id).Raised.Cmp(eth(150)))
	assert.Equal(t, 0, f.balance(ledger.NativeAsset(), custody).Cmp(eth(150)))
	assert.Len(t, f.events, 1+150)
}
