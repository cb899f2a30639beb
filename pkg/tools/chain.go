package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xhad/planfinder/pkg/chain/ethereum"
)

// ChainReader is the read-only chain access the chain tools need.
type ChainReader interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, wallet, token string) (ethereum.TokenAmount, error)
	TransactionStatus(ctx context.Context, txHash string) (ethereum.TxStatus, error)
	RecentTransactions(ctx context.Context, limit int) ([]common.Hash, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	ReadContract(ctx context.Context, contract, function string, args ...string) ([]any, error)
}

type EthBalance struct{ chain ChainReader }

func NewEthBalance(chain ChainReader) *EthBalance { return &EthBalance{chain: chain} }

func (t *EthBalance) Name() string    { return "get_eth_balance" }
func (t *EthBalance) Failure() string { return "fetching balance" }

func (t *EthBalance) Description() string {
	return "Returns the ETH balance of a wallet at the latest block."
}

func (t *EthBalance) Parameters() json.RawMessage {
	return addressParams("wallet_address")
}

func (t *EthBalance) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		Wallet string `json:"wallet_address"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	wei, err := t.chain.Balance(ctx, req.Wallet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("The ETH balance for %s is %s ETH", req.Wallet, ethereum.FormatEther(wei)), nil
}

type TokenBalance struct{ chain ChainReader }

func NewTokenBalance(chain ChainReader) *TokenBalance { return &TokenBalance{chain: chain} }

func (t *TokenBalance) Name() string    { return "get_token_balance" }
func (t *TokenBalance) Failure() string { return "fetching token balance" }

func (t *TokenBalance) Description() string {
	return "Returns the ERC-20 balance a wallet holds of the given token contract."
}

func (t *TokenBalance) Parameters() json.RawMessage {
	return addressParams("wallet_address", "token_address")
}

func (t *TokenBalance) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		Wallet string `json:"wallet_address"`
		Token  string `json:"token_address"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	amount, err := t.chain.TokenBalance(ctx, req.Wallet, req.Token)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("The balance for %s is %s tokens", req.Wallet, amount), nil
}

type TransactionStatus struct{ chain ChainReader }

func NewTransactionStatus(chain ChainReader) *TransactionStatus {
	return &TransactionStatus{chain: chain}
}

func (t *TransactionStatus) Name() string    { return "get_transaction_status" }
func (t *TransactionStatus) Failure() string { return "fetching transaction status" }

func (t *TransactionStatus) Description() string {
	return "Reports whether a transaction is pending, successful or failed."
}

func (t *TransactionStatus) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tx_hash": {
				"type": "string",
				"description": "0x prefixed transaction hash"
			}
		},
		"required": ["tx_hash"]
	}`)
}

func (t *TransactionStatus) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		TxHash string `json:"tx_hash"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	status, err := t.chain.TransactionStatus(ctx, req.TxHash)
	if err != nil {
		return "", err
	}
	switch status {
	case ethereum.TxPending:
		return "Transaction is pending", nil
	case ethereum.TxSuccessful:
		return "Transaction successful", nil
	default:
		return "Transaction failed", nil
	}
}

type RecentTransactions struct{ chain ChainReader }

func NewRecentTransactions(chain ChainReader) *RecentTransactions {
	return &RecentTransactions{chain: chain}
}

func (t *RecentTransactions) Name() string    { return "get_recent_transactions" }
func (t *RecentTransactions) Failure() string { return "fetching recent transactions" }

func (t *RecentTransactions) Description() string {
	return "Lists transaction hashes from the latest block."
}

func (t *RecentTransactions) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {
				"type": "integer",
				"description": "Maximum number of hashes to return (default: 10)"
			}
		}
	}`)
}

func (t *RecentTransactions) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	hashes, err := t.chain.RecentTransactions(ctx, req.Limit)
	if err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "No transactions in the latest block", nil
	}

	lines := make([]string, len(hashes))
	for i, h := range hashes {
		lines[i] = h.Hex()
	}
	return "Recent transactions:\n" + strings.Join(lines, "\n"), nil
}

type GasFee struct{ chain ChainReader }

func NewGasFee(chain ChainReader) *GasFee { return &GasFee{chain: chain} }

func (t *GasFee) Name() string    { return "estimate_gas_fee" }
func (t *GasFee) Failure() string { return "fetching gas fees" }

func (t *GasFee) Description() string {
	return "Returns the node's suggested gas price."
}

func (t *GasFee) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GasFee) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	wei, err := t.chain.GasPrice(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Current gas price: %s gwei (%s wei)", ethereum.FormatUnits(wei, 9), wei), nil
}

// ReadContract calls a read-only function of a contract through the known
// ERC-20 interface.
type ReadContract struct {
	chain     ChainReader
	functions []string
}

func NewReadContract(chain ChainReader, functions []string) *ReadContract {
	return &ReadContract{chain: chain, functions: functions}
}

func (t *ReadContract) Name() string    { return "get_contract_data" }
func (t *ReadContract) Failure() string { return "fetching contract data" }

func (t *ReadContract) Description() string {
	d := "Calls a read-only ERC-20 function on a contract and returns its result."
	if len(t.functions) > 0 {
		d += " Available: " + strings.Join(t.functions, "; ")
	}
	return d
}

func (t *ReadContract) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"contract_address": {
				"type": "string",
				"description": "Hex encoded contract address"
			},
			"function_name": {
				"type": "string",
				"description": "Name of the read-only function, e.g. totalSupply"
			},
			"args": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Function arguments in declaration order"
			}
		},
		"required": ["contract_address", "function_name"]
	}`)
}

func (t *ReadContract) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		Contract string   `json:"contract_address"`
		Function string   `json:"function_name"`
		Args     []string `json:"args"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	out, err := t.chain.ReadContract(ctx, req.Contract, req.Function, req.Args...)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(out))
	for i, v := range out {
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%s: %s", req.Function, strings.Join(parts, ", ")), nil
}
