package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/blues/cfl/internal/config"
	"github.com/blues/cfl/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// minedTimeout 已广播交易的确认等待上限
const minedTimeout = 10 * time.Minute

// Backend 客户端依赖的节点能力，*ethclient.Client 与模拟链均满足
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client 托管账户的链上客户端
type Client struct {
	eth      Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
}

// Dial 连接 RPC 节点并加载托管账户私钥
func Dial(ctx context.Context, cfg config.ChainConfig) (*Client, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	// 解析私钥
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	logger.Info("Creating chain client connection (RPC: %s)", cfg.RpcUrl)
	eth, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain client: %w", err)
	}

	// 测试连接并核对链ID
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("client connection test failed: %w", err)
	}
	if cfg.ChainId != 0 && chainID.Int64() != cfg.ChainId {
		eth.Close()
		return nil, fmt.Errorf("chain id mismatch: configured %d, node reports %s", cfg.ChainId, chainID)
	}

	c, err := NewClient(ctx, eth, key, cfg.GasLimit)
	if err != nil {
		eth.Close()
		return nil, err
	}
	logger.Info("Successfully connected to chain %s, custody account %s", chainID, c.from.Hex())
	return c, nil
}

// NewClient 基于已连接的节点创建客户端，gasLimit 为 0 时自动估算
func NewClient(ctx context.Context, eth Backend, key *ecdsa.PrivateKey, gasLimit uint64) (*Client, error) {
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	return &Client{
		eth:      eth,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasLimit: gasLimit,
	}, nil
}

// Address 托管账户地址
func (c *Client) Address() common.Address {
	return c.from
}

// ChainID 链ID
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// BlockNumber 当前最新区块号
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// TransactionsAt 指定区块内的交易
func (c *Client) TransactionsAt(ctx context.Context, number uint64) (types.Transactions, error) {
	block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", number, err)
	}
	return block.Transactions(), nil
}

// transactOpts 托管账户签名的交易参数
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = c.gasLimit
	return opts, nil
}

// waitMined 等待交易上链并检查执行结果。
// 交易广播后不再跟随调用方取消，只受 minedTimeout 限制。
func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), minedTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return fmt.Errorf("wait for tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("tx %s reverted in block %s", tx.Hash().Hex(), receipt.BlockNumber)
	}
	logger.Debug("Tx %s mined in block %s", tx.Hash().Hex(), receipt.BlockNumber)
	return nil
}

// Close 关闭连接
func (c *Client) Close() {
	if closer, ok := c.eth.(interface{ Close() }); ok {
		closer.Close()
	}
	logger.Info("Chain client closed")
}
