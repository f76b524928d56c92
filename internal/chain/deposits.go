package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/blues/cfl/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrInsufficientDeposit 付款人已确认的原生币入账不足
var ErrInsufficientDeposit = errors.New("insufficient native deposit")

// maxBlocksPerScan 单次扫描的区块上限
const maxBlocksPerScan = 500

// DepositBook 已确认、尚未计入活动的原生币入账，按付款人统计
type DepositBook struct {
	mu      sync.Mutex
	credits map[common.Address]*big.Int
	seen    map[common.Hash]struct{}
}

// NewDepositBook 创建入账簿
func NewDepositBook() *DepositBook {
	return &DepositBook{
		credits: make(map[common.Address]*big.Int),
		seen:    make(map[common.Hash]struct{}),
	}
}

// Balance 付款人可用入账
func (b *DepositBook) Balance(payer common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.credits[payer]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Credit 增加付款人入账
func (b *DepositBook) Credit(payer common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(payer, amount)
}

// Debit 扣减付款人入账
func (b *DepositBook) Debit(payer common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	have, ok := b.credits[payer]
	if !ok {
		have = new(big.Int)
	}
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientDeposit, payer.Hex(), have, amount)
	}
	have.Sub(have, amount)
	return nil
}

// record 按交易哈希去重入账，重复交易返回 false
func (b *DepositBook) record(hash common.Hash, payer common.Address, amount *big.Int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.seen[hash]; ok {
		return false
	}
	b.seen[hash] = struct{}{}
	b.credit(payer, amount)
	return true
}

func (b *DepositBook) credit(payer common.Address, amount *big.Int) {
	if v, ok := b.credits[payer]; ok {
		v.Add(v, amount)
		return
	}
	b.credits[payer] = new(big.Int).Set(amount)
}

// BlockReader 区块读取能力，*Client 实现
type BlockReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionsAt(ctx context.Context, number uint64) (types.Transactions, error)
}

// DepositScanner 扫描已确认区块中转入托管地址的原生币交易并记入入账簿
type DepositScanner struct {
	mu            sync.Mutex
	reader        BlockReader
	book          *DepositBook
	custody       common.Address
	signer        types.Signer
	confirmations uint64
	next          uint64 // 下一个待扫描区块
}

// NewDepositScanner 创建扫描器
func NewDepositScanner(reader BlockReader, book *DepositBook, custody common.Address, chainID *big.Int, startBlock, confirmations uint64) *DepositScanner {
	return &DepositScanner{
		reader:        reader,
		book:          book,
		custody:       custody,
		signer:        types.LatestSignerForChainID(chainID),
		confirmations: confirmations,
		next:          startBlock,
	}
}

// Next 下一个待扫描区块
func (s *DepositScanner) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Scan 扫描到最新已确认区块，返回新记入的入账笔数。
// 单个区块读取失败时停在该区块，下次从这里继续。
func (s *DepositScanner) Scan(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.reader.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get current block number: %w", err)
	}
	if latest < s.confirmations {
		return 0, nil
	}
	to := latest - s.confirmations
	if to >= s.next+maxBlocksPerScan {
		to = s.next + maxBlocksPerScan - 1
	}

	credited := 0
	for ; s.next <= to; s.next++ {
		txs, err := s.reader.TransactionsAt(ctx, s.next)
		if err != nil {
			return credited, err
		}
		for _, tx := range txs {
			if s.creditTx(tx) {
				credited++
			}
		}
	}
	if credited > 0 {
		logger.Info("Credited %d native deposits, next block %d", credited, s.next)
	}
	return credited, nil
}

// creditTx 托管地址是外部账户，转入原生币的交易不会回滚
func (s *DepositScanner) creditTx(tx *types.Transaction) bool {
	if tx.To() == nil || *tx.To() != s.custody || tx.Value().Sign() == 0 {
		return false
	}
	from, err := types.Sender(s.signer, tx)
	if err != nil {
		logger.Warn("Skipping deposit %s with bad signature: %v", tx.Hash().Hex(), err)
		return false
	}
	return s.book.record(tx.Hash(), from, tx.Value())
}
