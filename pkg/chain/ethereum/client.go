// Package ethereum is a read-only client for an Ethereum JSON-RPC node:
// balances, receipts, the latest block, gas price and view calls against
// known contract interfaces.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrInvalidAddress = errors.New("invalid ethereum address")
	ErrInvalidTxHash  = errors.New("invalid transaction hash")

	// ErrUnknownTransaction is returned for a hash the node has neither mined
	// nor holds in its pool.
	ErrUnknownTransaction = errors.New("transaction not found")
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Backend is the subset of ethclient.Client the Client needs.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*coretypes.Transaction, bool, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*coretypes.Block, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type Config struct {
	RPCURL string
}

type TxStatus string

const (
	TxPending    TxStatus = "pending"
	TxSuccessful TxStatus = "successful"
	TxFailed     TxStatus = "failed"
)

// TokenAmount is a raw ERC-20 balance and the decimals it is scaled by.
type TokenAmount struct {
	Raw      *big.Int
	Decimals uint8
}

func (t TokenAmount) String() string {
	return FormatUnits(t.Raw, int(t.Decimals))
}

type Client struct {
	backend Backend
	erc20   *ContractInterface
	closeFn func()
}

// Dial connects to the configured RPC endpoint.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("ethereum RPC URL is not configured")
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}

	c, err := NewWithBackend(eth)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.closeFn = eth.Close
	return c, nil
}

// NewWithBackend wraps an existing backend, such as a simulated chain.
func NewWithBackend(backend Backend) (*Client, error) {
	erc20, err := NewContractInterface(ERC20ABI)
	if err != nil {
		return nil, err
	}
	return &Client{backend: backend, erc20: erc20}, nil
}

func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
		c.closeFn = nil
	}
}

// ERC20 exposes the ERC-20 call descriptors.
func (c *Client) ERC20() *ContractInterface {
	return c.erc20
}

// Balance returns the wei balance of address at the latest block.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	balance, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return balance, nil
}

// TokenBalance reads balanceOf and decimals from an ERC-20 contract.
func (c *Client) TokenBalance(ctx context.Context, wallet, token string) (TokenAmount, error) {
	if _, err := parseAddress(wallet); err != nil {
		return TokenAmount{}, err
	}

	out, err := c.ReadContract(ctx, token, "balanceOf", wallet)
	if err != nil {
		return TokenAmount{}, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return TokenAmount{}, fmt.Errorf("unexpected balanceOf result %T", out[0])
	}

	out, err = c.ReadContract(ctx, token, "decimals")
	if err != nil {
		return TokenAmount{}, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return TokenAmount{}, fmt.Errorf("unexpected decimals result %T", out[0])
	}

	return TokenAmount{Raw: raw, Decimals: decimals}, nil
}

// TransactionStatus reports whether a transaction is pending, succeeded or
// reverted.
func (c *Client) TransactionStatus(ctx context.Context, txHash string) (TxStatus, error) {
	txHash = strings.TrimSpace(txHash)
	if !txHashPattern.MatchString(txHash) {
		return "", fmt.Errorf("%w: %s", ErrInvalidTxHash, txHash)
	}

	hash := common.HexToHash(txHash)
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, gethcore.NotFound) || (err == nil && receipt == nil) {
		return c.unminedStatus(ctx, hash)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch transaction receipt: %w", err)
	}
	if receipt.Status == coretypes.ReceiptStatusSuccessful {
		return TxSuccessful, nil
	}
	return TxFailed, nil
}

// unminedStatus looks a receipt-less hash up in the node's pool.
func (c *Client) unminedStatus(ctx context.Context, hash common.Hash) (TxStatus, error) {
	tx, _, err := c.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, gethcore.NotFound) || (err == nil && tx == nil) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTransaction, hash.Hex())
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return TxPending, nil
}

// RecentTransactions returns up to limit transaction hashes from the latest
// block.
func (c *Client) RecentTransactions(ctx context.Context, limit int) ([]common.Hash, error) {
	block, err := c.backend.BlockByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest block: %w", err)
	}

	txs := block.Transactions()
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	hashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	return hashes, nil
}

// GasPrice returns the node's suggested gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	return price, nil
}

// ReadContract calls a read-only ERC-20 function on contract and returns the
// decoded outputs.
func (c *Client) ReadContract(ctx context.Context, contract, function string, args ...string) ([]any, error) {
	addr, err := parseAddress(contract)
	if err != nil {
		return nil, err
	}

	data, err := c.erc20.Pack(function, args...)
	if err != nil {
		return nil, err
	}

	raw, err := c.backend.CallContract(ctx, gethcore.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", function, err)
	}
	return c.erc20.Unpack(function, raw)
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
