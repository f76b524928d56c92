package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chainID = big.NewInt(1337)
	custody = common.HexToAddress("0xa2")
	owner   = common.HexToAddress("0xa1")
)

// fakeChain 按区块号返回预置交易
type fakeChain struct {
	latest uint64
	blocks map[uint64]types.Transactions
	fail   map[uint64]bool
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeChain) TransactionsAt(_ context.Context, number uint64) (types.Transactions, error) {
	if f.fail[number] {
		return nil, fmt.Errorf("block %d unavailable", number)
	}
	return f.blocks[number], nil
}

func signedTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, to common.Address, value int64) *types.Transaction {
	t.Helper()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(value),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)
	return signed
}

func TestDepositScannerCreditsConfirmedTransfers(t *testing.T) {
	alice, err := crypto.GenerateKey()
	require.NoError(t, err)
	bob, err := crypto.GenerateKey()
	require.NoError(t, err)
	aliceAddr := crypto.PubkeyToAddress(alice.PublicKey)
	bobAddr := crypto.PubkeyToAddress(bob.PublicKey)

	fc := &fakeChain{
		latest: 12,
		blocks: map[uint64]types.Transactions{
			10: {signedTx(t, alice, 0, custody, 100), signedTx(t, bob, 0, common.HexToAddress("0xbeef"), 5)},
			11: {signedTx(t, bob, 1, custody, 40)},
			12: {signedTx(t, alice, 1, custody, 7)},
		},
	}
	book := NewDepositBook()
	scanner := NewDepositScanner(fc, book, custody, chainID, 10, 1)

	n, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint64(12), scanner.Next())
	assert.Equal(t, big.NewInt(100), book.Balance(aliceAddr))
	assert.Equal(t, big.NewInt(40), book.Balance(bobAddr))

	// 新区块确认后继续
	fc.latest = 13
	n, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, big.NewInt(107), book.Balance(aliceAddr))

	// 同一交易不会重复入账
	assert.False(t, book.record(fc.blocks[12][0].Hash(), aliceAddr, big.NewInt(7)))
	assert.Equal(t, big.NewInt(107), book.Balance(aliceAddr))
}

func TestDepositScannerStopsAtFailedBlock(t *testing.T) {
	alice, err := crypto.GenerateKey()
	require.NoError(t, err)
	fc := &fakeChain{
		latest: 5,
		blocks: map[uint64]types.Transactions{
			1: {signedTx(t, alice, 0, custody, 1)},
			3: {signedTx(t, alice, 1, custody, 2)},
		},
		fail: map[uint64]bool{2: true},
	}
	book := NewDepositBook()
	scanner := NewDepositScanner(fc, book, custody, chainID, 1, 0)

	n, err := scanner.Scan(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(2), scanner.Next())

	delete(fc.fail, 2)
	n, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(6), scanner.Next())
	assert.Equal(t, big.NewInt(3), book.Balance(crypto.PubkeyToAddress(alice.PublicKey)))
}

func TestDepositBookDebit(t *testing.T) {
	book := NewDepositBook()
	payer := common.HexToAddress("0xc1")

	assert.ErrorIs(t, book.Debit(payer, big.NewInt(1)), ErrInsufficientDeposit)

	book.Credit(payer, big.NewInt(10))
	require.NoError(t, book.Debit(payer, big.NewInt(4)))
	assert.ErrorIs(t, book.Debit(payer, big.NewInt(7)), ErrInsufficientDeposit)
	assert.Equal(t, big.NewInt(6), book.Balance(payer))
}

// failingPull 原生币入账扣减后让划转失败
type failingPull struct{ *Transfer }

func (f failingPull) PullFrom(ctx context.Context, asset ledger.Asset, payer common.Address, amount *big.Int) error {
	if err := f.Transfer.PullFrom(ctx, asset, payer, amount); err != nil {
		return err
	}
	return fmt.Errorf("node went away")
}

func TestNativeContributionSpendsDeposits(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	book := NewDepositBook()
	transfer, err := NewTransfer(nil, book)
	require.NoError(t, err)

	alice := common.HexToAddress("0xc1")
	book.Credit(alice, big.NewInt(100))

	l := ledger.New(ledger.Params{
		Owner:    owner,
		Custody:  custody,
		Transfer: failingPull{transfer},
		Clock:    func() time.Time { return now },
	})
	id, err := l.CreateCampaign(ctx, common.HexToAddress("0xb1"), ledger.CampaignParams{
		Goal:     big.NewInt(1000),
		Deadline: now.Add(time.Hour),
		Asset:    ledger.NativeAsset(),
	})
	require.NoError(t, err)

	err = l.Contribute(ctx, alice, id, big.NewInt(60))
	assert.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.Equal(t, big.NewInt(100), book.Balance(alice))

	l = ledger.New(ledger.Params{
		Owner:    owner,
		Custody:  custody,
		Transfer: transfer,
		Clock:    func() time.Time { return now },
	})
	id, err = l.CreateCampaign(ctx, common.HexToAddress("0xb1"), ledger.CampaignParams{
		Goal:     big.NewInt(1000),
		Deadline: now.Add(time.Hour),
		Asset:    ledger.NativeAsset(),
	})
	require.NoError(t, err)
	require.NoError(t, l.Contribute(ctx, alice, id, big.NewInt(60)))
	assert.Equal(t, big.NewInt(40), book.Balance(alice))

	err = l.Contribute(ctx, alice, id, big.NewInt(41))
	assert.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.Equal(t, big.NewInt(40), book.Balance(alice))
}

func TestERC20Binding(t *testing.T) {
	parsed, err := parseERC20()
	require.NoError(t, err)

	data, err := parsed.Pack("transfer", common.HexToAddress("0xc1"), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "a9059cbb", common.Bytes2Hex(data[:4]))

	data, err = parsed.Pack("transferFrom", common.HexToAddress("0xc1"), custody, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "23b872dd", common.Bytes2Hex(data[:4]))
}
