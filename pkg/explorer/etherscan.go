package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
)

const DefaultEtherscanURL = "https://api.etherscan.io/api"

// TokenHolding is the net ERC-20 balance of a wallet derived from its
// transfer history.
type TokenHolding struct {
	Contract string
	Name     string
	Symbol   string
	Balance  *big.Rat
}

type NFT struct {
	Contract string
	TokenID  string
	Name     string
	Symbol   string
}

type Etherscan struct {
	http   httpClient
	apiKey string
}

func NewEtherscan(config ClientConfig) *Etherscan {
	return &Etherscan{
		// The free tier allows five calls per second.
		http:   newHTTPClient(config, DefaultEtherscanURL, 5),
		apiKey: config.APIKey,
	}
}

type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type tokenTransfer struct {
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	Value           string `json:"value"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	TokenID         string `json:"tokenID"`
}

// TokenHoldings sums the wallet's ERC-20 transfers per contract. Incoming
// transfers add to the balance and outgoing ones subtract. Holdings keep the
// order in which each contract first appears.
func (e *Etherscan) TokenHoldings(ctx context.Context, wallet string) ([]TokenHolding, error) {
	transfers, err := e.transfers(ctx, "tokentx", wallet)
	if err != nil {
		return nil, err
	}

	var holdings []TokenHolding
	byContract := map[string]int{}
	for _, t := range transfers {
		value, ok := new(big.Int).SetString(t.Value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid transfer value %q", t.Value)
		}
		decimals, err := strconv.Atoi(t.TokenDecimal)
		if err != nil {
			return nil, fmt.Errorf("invalid token decimals %q", t.TokenDecimal)
		}
		amount := new(big.Rat).SetFrac(value, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))

		key := strings.ToLower(t.ContractAddress)
		i, ok := byContract[key]
		if !ok {
			i = len(holdings)
			byContract[key] = i
			holdings = append(holdings, TokenHolding{
				Contract: t.ContractAddress,
				Name:     t.TokenName,
				Symbol:   t.TokenSymbol,
				Balance:  new(big.Rat),
			})
		}

		bal := holdings[i].Balance
		if strings.EqualFold(t.To, wallet) {
			bal.Add(bal, amount)
		}
		if strings.EqualFold(t.From, wallet) {
			bal.Sub(bal, amount)
		}
	}
	return holdings, nil
}

// NFTs lists every ERC-721 transfer touching the wallet, oldest first.
func (e *Etherscan) NFTs(ctx context.Context, wallet string) ([]NFT, error) {
	transfers, err := e.transfers(ctx, "tokennfttx", wallet)
	if err != nil {
		return nil, err
	}

	nfts := make([]NFT, 0, len(transfers))
	for _, t := range transfers {
		nft := NFT{
			Contract: t.ContractAddress,
			TokenID:  t.TokenID,
			Name:     t.TokenName,
			Symbol:   t.TokenSymbol,
		}
		if nft.Name == "" {
			nft.Name = "Unknown NFT"
		}
		if nft.Symbol == "" {
			nft.Symbol = "NFT"
		}
		nfts = append(nfts, nft)
	}
	return nfts, nil
}

func (e *Etherscan) transfers(ctx context.Context, action, wallet string) ([]tokenTransfer, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("etherscan: %w", ErrMissingAPIKey)
	}

	query := url.Values{
		"module":     {"account"},
		"action":     {action},
		"address":    {wallet},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"sort":       {"asc"},
		"apikey":     {e.apiKey},
	}
	var resp etherscanResponse
	if err := e.http.getJSON(ctx, "", query, &resp); err != nil {
		return nil, err
	}

	// Failures come back as status "0" with a string result.
	var transfers []tokenTransfer
	if err := json.Unmarshal(resp.Result, &transfers); err != nil {
		if resp.Status == "0" && strings.HasPrefix(resp.Message, "No transactions found") {
			return nil, nil
		}
		var msg string
		if json.Unmarshal(resp.Result, &msg) == nil && msg != "" {
			return nil, fmt.Errorf("etherscan: %s: %s", resp.Message, msg)
		}
		return nil, fmt.Errorf("etherscan: unexpected result: %w", err)
	}
	return transfers, nil
}
