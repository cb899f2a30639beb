package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xhad/planfinder/pkg/explorer"
)

type TokenLister interface {
	TokenHoldings(ctx context.Context, wallet string) ([]explorer.TokenHolding, error)
	NFTs(ctx context.Context, wallet string) ([]explorer.NFT, error)
}

type EtherscanTokens struct{ lister TokenLister }

func NewEtherscanTokens(lister TokenLister) *EtherscanTokens {
	return &EtherscanTokens{lister: lister}
}

func (t *EtherscanTokens) Name() string    { return "get_tokens_from_etherscan" }
func (t *EtherscanTokens) Failure() string { return "fetching token balances" }

func (t *EtherscanTokens) Description() string {
	return "Lists the ERC-20 tokens a wallet holds, with balances derived from its transfer history."
}

func (t *EtherscanTokens) Parameters() json.RawMessage {
	return addressParams("wallet_address")
}

func (t *EtherscanTokens) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		Wallet string `json:"wallet_address"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	holdings, err := t.lister.TokenHoldings(ctx, req.Wallet)
	if err != nil {
		return "", err
	}
	if len(holdings) == 0 {
		return "No tokens found in wallet " + req.Wallet, nil
	}

	lines := make([]string, len(holdings))
	for i, h := range holdings {
		lines[i] = fmt.Sprintf("%s: %s", h.Symbol, h.Balance.FloatString(4))
	}
	return fmt.Sprintf("Tokens in %s:\n%s", req.Wallet, strings.Join(lines, "\n")), nil
}

type EtherscanNFTs struct{ lister TokenLister }

func NewEtherscanNFTs(lister TokenLister) *EtherscanNFTs {
	return &EtherscanNFTs{lister: lister}
}

func (t *EtherscanNFTs) Name() string    { return "get_nfts_from_etherscan" }
func (t *EtherscanNFTs) Failure() string { return "fetching NFTs" }

func (t *EtherscanNFTs) Description() string {
	return "Lists the ERC-721 tokens transferred to or from a wallet."
}

func (t *EtherscanNFTs) Parameters() json.RawMessage {
	return addressParams("wallet_address")
}

func (t *EtherscanNFTs) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		Wallet string `json:"wallet_address"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}

	nfts, err := t.lister.NFTs(ctx, req.Wallet)
	if err != nil {
		return "", err
	}
	if len(nfts) == 0 {
		return "No NFTs found in wallet " + req.Wallet, nil
	}

	lines := make([]string, len(nfts))
	for i, n := range nfts {
		lines[i] = fmt.Sprintf("%s (Symbol: %s, Token ID: %s, Contract: %s)", n.Name, n.Symbol, n.TokenID, n.Contract)
	}
	return fmt.Sprintf("NFTs in %s:\n%s", req.Wallet, strings.Join(lines, "\n")), nil
}

type AddressResolver interface {
	TokenAddress(ctx context.Context, id string) (string, error)
}

type LookupTokenAddress struct{ resolver AddressResolver }

func NewLookupTokenAddress(resolver AddressResolver) *LookupTokenAddress {
	return &LookupTokenAddress{resolver: resolver}
}

func (t *LookupTokenAddress) Name() string    { return "lookup_token_address" }
func (t *LookupTokenAddress) Failure() string { return "looking up token address" }

func (t *LookupTokenAddress) Description() string {
	return "Looks up the Ethereum contract address of a token by its CoinGecko id, e.g. usd-coin."
}

func (t *LookupTokenAddress) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"token_name": {
				"type": "string",
				"description": "CoinGecko coin id"
			}
		},
		"required": ["token_name"]
	}`)
}

func (t *LookupTokenAddress) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req struct {
		TokenName string `json:"token_name"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	return t.resolver.TokenAddress(ctx, req.TokenName)
}
