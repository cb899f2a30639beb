package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/planfinder/internal/models"
	"github.com/xhad/planfinder/pkg/chain/ethereum"
	"github.com/xhad/planfinder/pkg/explorer"
	"github.com/xhad/planfinder/pkg/index"
	"github.com/xhad/planfinder/pkg/tools"
)

type fakeFinder struct {
	matches []models.Match
	err     error
	gotK    int
	gotQ    string
}

func (f *fakeFinder) FindSimilar(_ context.Context, query string, k int) ([]models.Match, error) {
	f.gotK = k
	f.gotQ = query
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.matches) {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

type fakeAdvisor struct{ got []models.Match }

func (a *fakeAdvisor) Explain(_ context.Context, query string, matches []models.Match) (string, error) {
	a.got = matches
	return "Do " + matches[0].Plan.Text + " for " + query, nil
}

type fakeChain struct{ err error }

func (c fakeChain) Balance(context.Context, string) (*big.Int, error) {
	return big.NewInt(2_000_000_000_000_000_000), c.err
}

func (c fakeChain) TokenBalance(context.Context, string, string) (ethereum.TokenAmount, error) {
	return ethereum.TokenAmount{Raw: big.NewInt(1_230_000), Decimals: 6}, c.err
}

func (c fakeChain) TransactionStatus(_ context.Context, hash string) (ethereum.TxStatus, error) {
	return ethereum.TxStatus(hash), c.err
}

func (c fakeChain) RecentTransactions(_ context.Context, limit int) ([]common.Hash, error) {
	hashes := []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")}
	return hashes[:min(limit, len(hashes))], c.err
}

func (c fakeChain) GasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(25_500_000_000), c.err
}

func (c fakeChain) ReadContract(_ context.Context, _, function string, _ ...string) ([]any, error) {
	if function == "transfer" {
		return nil, ethereum.ErrNotReadOnly
	}
	return []any{"USD Coin"}, c.err
}

type fakeExplorer struct{}

func (fakeExplorer) TokenHoldings(context.Context, string) ([]explorer.TokenHolding, error) {
	return []explorer.TokenHolding{
		{Symbol: "USDC", Balance: big.NewRat(5, 2)},
		{Symbol: "DAI", Balance: big.NewRat(-1, 3)},
	}, nil
}

func (fakeExplorer) NFTs(context.Context, string) ([]explorer.NFT, error) {
	return nil, nil
}

func (fakeExplorer) TokenAddress(_ context.Context, id string) (string, error) {
	if id == "usd-coin" {
		return "0xa0b8", nil
	}
	return "", explorer.ErrTokenNotFound
}

var plans = []models.Match{
	{Plan: models.Plan{Position: 0, Text: "Plan A: save 10% monthly"}, Distance: 0.1},
	{Plan: models.Plan{Position: 2, Text: "Plan C: pay off debt first"}, Distance: 0.4},
}

func registry(finder *fakeFinder, advisor *fakeAdvisor) *tools.Registry {
	deps := tools.Deps{
		Finder:   finder,
		Chain:    fakeChain{},
		Tokens:   fakeExplorer{},
		Resolver: fakeExplorer{},
	}
	if advisor != nil {
		deps.Advisor = advisor
	}
	return tools.NewDefaultRegistry(deps)
}

func TestFindSimilarPlan(t *testing.T) {
	finder := &fakeFinder{matches: plans}
	r := registry(finder, nil)
	ctx := context.Background()

	out := r.Dispatch(ctx, "find_similar_plan", json.RawMessage(`{"query":"save money"}`))
	assert.Equal(t, "Most similar plan: Plan A: save 10% monthly", out)
	assert.Equal(t, 1, finder.gotK)

	out = r.Dispatch(ctx, "find_similar_plan", json.RawMessage(`{"query":"save money","top_k":2}`))
	assert.Equal(t, "Most similar plans:\n1. Plan A: save 10% monthly (distance: 0.1000)\n2. Plan C: pay off debt first (distance: 0.4000)", out)

}

func TestFindSimilarPlanAcceptsAnyQuery(t *testing.T) {
	finder := &fakeFinder{matches: plans}
	r := registry(finder, nil)
	ctx := context.Background()

	for _, query := range []string{"", "  ", "\t"} {
		args, err := json.Marshal(map[string]string{"query": query})
		require.NoError(t, err)
		out := r.Dispatch(ctx, "find_similar_plan", args)
		assert.Equal(t, "Most similar plan: Plan A: save 10% monthly", out)
		assert.Equal(t, query, finder.gotQ)
	}
}

func TestFindSimilarPlanErrors(t *testing.T) {
	r := registry(&fakeFinder{err: index.ErrEmptyIndex}, nil)

	out := r.Dispatch(context.Background(), "find_similar_plan", json.RawMessage(`{"query":"save"}`))
	assert.Equal(t, "Error finding similar plan: "+index.ErrEmptyIndex.Error(), out)

	out = r.Dispatch(context.Background(), "find_similar_plan", json.RawMessage(`not json`))
	assert.Contains(t, out, "Error finding similar plan: invalid arguments")
}

func TestExplainPlan(t *testing.T) {
	advisor := &fakeAdvisor{}
	r := registry(&fakeFinder{matches: plans}, advisor)

	out := r.Dispatch(context.Background(), "explain_plan", json.RawMessage(`{"query":"saving"}`))
	assert.Equal(t, "Do Plan A: save 10% monthly for saving", out)
	assert.Len(t, advisor.got, 1)
}

func TestRegistryWithoutOptionalServices(t *testing.T) {
	r := tools.NewDefaultRegistry(tools.Deps{Finder: &fakeFinder{}})
	assert.Equal(t, []string{"find_similar_plan"}, r.List())

	out := r.Dispatch(context.Background(), "get_eth_balance", nil)
	assert.Equal(t, `Error: unknown tool "get_eth_balance"`, out)
}

func TestSchemas(t *testing.T) {
	r := registry(&fakeFinder{}, &fakeAdvisor{})
	schemas := r.Schemas()
	require.Len(t, schemas, len(r.List()))

	for _, s := range schemas {
		var params map[string]any
		require.NoError(t, json.Unmarshal(s.Parameters, &params), s.Name)
		assert.Equal(t, "object", params["type"], s.Name)
		assert.NotEmpty(t, s.Description, s.Name)
	}
}

func TestChainTools(t *testing.T) {
	r := registry(&fakeFinder{}, nil)
	ctx := context.Background()

	tests := []struct {
		tool string
		args string
		want string
	}{
		{"get_eth_balance", `{"wallet_address":"0xabc"}`, "The ETH balance for 0xabc is 2 ETH"},
		{"get_token_balance", `{"wallet_address":"0xabc","token_address":"0xdef"}`, "The balance for 0xabc is 1.23 tokens"},
		{"get_transaction_status", `{"tx_hash":"pending"}`, "Transaction is pending"},
		{"get_transaction_status", `{"tx_hash":"successful"}`, "Transaction successful"},
		{"get_transaction_status", `{"tx_hash":"failed"}`, "Transaction failed"},
		{"get_recent_transactions", `{"limit":1}`, "Recent transactions:\n" + common.HexToHash("0x01").Hex()},
		{"estimate_gas_fee", `{}`, "Current gas price: 25.5 gwei (25500000000 wei)"},
		{"get_contract_data", `{"contract_address":"0xdef","function_name":"name"}`, "name: USD Coin"},
		{"get_contract_data", `{"contract_address":"0xdef","function_name":"transfer"}`, "Error fetching contract data: " + ethereum.ErrNotReadOnly.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Dispatch(ctx, tt.tool, json.RawMessage(tt.args)))
		})
	}
}

func TestChainToolFailure(t *testing.T) {
	r := tools.NewDefaultRegistry(tools.Deps{Chain: fakeChain{err: errors.New("connection refused")}})

	out := r.Dispatch(context.Background(), "estimate_gas_fee", nil)
	assert.Equal(t, "Error fetching gas fees: connection refused", out)
}

func TestExplorerTools(t *testing.T) {
	r := registry(&fakeFinder{}, nil)
	ctx := context.Background()

	out := r.Dispatch(ctx, "get_tokens_from_etherscan", json.RawMessage(`{"wallet_address":"0xabc"}`))
	assert.Equal(t, "Tokens in 0xabc:\nUSDC: 2.5000\nDAI: -0.3333", out)

	out = r.Dispatch(ctx, "get_nfts_from_etherscan", json.RawMessage(`{"wallet_address":"0xabc"}`))
	assert.Equal(t, "No NFTs found in wallet 0xabc", out)

	out = r.Dispatch(ctx, "lookup_token_address", json.RawMessage(`{"token_name":"usd-coin"}`))
	assert.Equal(t, "0xa0b8", out)

	out = r.Dispatch(ctx, "lookup_token_address", json.RawMessage(`{"token_name":"nope"}`))
	assert.Equal(t, "Error looking up token address: "+explorer.ErrTokenNotFound.Error(), out)
}
