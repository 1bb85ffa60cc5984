package app

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/arbguard/business/blockchain/domain"
	discoveryDomain "github.com/fd1az/arbguard/business/discovery/domain"
	"github.com/fd1az/arbguard/business/execution/infra/signer"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	riskApp "github.com/fd1az/arbguard/business/risk/app"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/business/risk/infra/sqlite"
	safetyDomain "github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	gasUsedPerTx = 100_000
	oneGwei      = 1_000_000_000
)

// fakeChain mines every sent transaction immediately.
type fakeChain struct {
	mu       sync.Mutex
	nonce    uint64
	sendErrs []error
	// statuses are receipt statuses in send order; missing entries succeed.
	statuses []uint64
	sent     []*types.Transaction
	// balances are successive TokenBalance results; the last one repeats.
	balances []*big.Int
	calls    int
	native   *big.Int
}

func (c *fakeChain) PendingNonce(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *fakeChain) Send(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sendErrs) > 0 {
		err := c.sendErrs[0]
		c.sendErrs = c.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	c.sent = append(c.sent, tx)
	c.nonce++
	return nil
}

func (c *fakeChain) WaitReceipt(_ context.Context, hash common.Hash, _, _ time.Duration) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tx := range c.sent {
		if tx.Hash() != hash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if i < len(c.statuses) {
			status = c.statuses[i]
		}
		return &types.Receipt{
			TxHash:            hash,
			Status:            status,
			GasUsed:           gasUsedPerTx,
			EffectiveGasPrice: big.NewInt(oneGwei),
		}, nil
	}
	return nil, apperror.New(apperror.CodeReceiptTimeout)
}

func (c *fakeChain) TokenBalance(_ context.Context, a *asset.Asset, _ common.Address) (asset.Amount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.balances) {
		i = len(c.balances) - 1
	}
	c.calls++
	return asset.NewAmount(a, c.balances[i]), nil
}

func (c *fakeChain) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return c.native, nil
}

type fixedGas struct{}

func (fixedGas) GasPrice(context.Context) (*blockchainDomain.GasPrice, error) {
	return blockchainDomain.NewGasPrice(big.NewInt(oneGwei), time.Now()), nil
}

type usdPrices map[string]float64

func (p usdPrices) USDPrice(_ context.Context, a *asset.Asset) (asset.Price, error) {
	v, ok := p[a.Symbol()]
	if !ok {
		return asset.Price{}, apperror.New(apperror.CodeReferencePriceMissing, apperror.WithContext(a.Symbol()))
	}
	return asset.USDPrice(a, decimal.NewFromFloat(v), time.Now()), nil
}

func prices() usdPrices { return usdPrices{"USDC": 1, "WETH": 2000, "ETH": 2000} }

func usdc(t *testing.T, s string) asset.Amount {
	t.Helper()
	v, err := asset.ParseString(asset.USDC, s)
	require.NoError(t, err)
	return v
}

func raw(t *testing.T, s string) *big.Int {
	return usdc(t, s).Raw()
}

func newSigner(t *testing.T) *signer.KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signer.FromKey(key)
}

func newLedger(t *testing.T, limits riskDomain.Limits) *riskApp.Ledger {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	l, err := riskApp.NewLedger(store, limits, logger.NewNop())
	require.NoError(t, err)
	return l
}

func defaultLimits() riskDomain.Limits {
	return riskDomain.Limits{
		DailyLossLimitUSD:      decimal.NewFromInt(500),
		MaxPositionSizeUSD:     decimal.NewFromInt(10000),
		MaxSingleLossUSD:       decimal.NewFromInt(200),
		MaxConsecutiveFailures: 3,
		MaxDailyTrades:         100,
		AutoPause:              true,
	}
}

// roundTrip is a 1000 USDC → 0.5 WETH → 1005 USDC opportunity on v1.
func roundTrip(t *testing.T) *arbDomain.Opportunity {
	t.Helper()
	route := discoveryDomain.Route{
		Kind: discoveryDomain.KindDirect,
		Legs: []discoveryDomain.Leg{
			{TokenIn: asset.USDC, TokenOut: asset.WETH, Venue: "v1", ChainID: 1},
			{TokenIn: asset.WETH, TokenOut: asset.USDC, Venue: "v1", ChainID: 1},
		},
	}
	start := usdc(t, "1000")
	mid, err := asset.ParseString(asset.WETH, "0.5")
	require.NoError(t, err)
	final := usdc(t, "1005")
	quotes := []*pricingDomain.Quote{
		{AmountIn: start, AmountOut: mid, Venue: "v1", ChainID: 1},
		{AmountIn: mid, AmountOut: final, Venue: "v1", ChainID: 1},
	}
	profit := &arbDomain.ProfitResult{NetProfit: decimal.NewFromInt(4), IsProfitable: true}
	return arbDomain.NewOpportunity(route, start, final, quotes, nil, profit, arbDomain.RiskScore{},
		decimal.Zero, time.Now(), time.Minute)
}

func testPlanner() *Planner {
	return NewPlanner(PlannerConfig{
		Routers: map[string]common.Address{"V1": common.HexToAddress("0x00000000000000000000000000000000000000f1")},
		TxGuard: safetyDomain.DefaultTxGuardConfig(),
	})
}

func safeVerdict(opp *arbDomain.Opportunity) safetyDomain.Verdict {
	return safetyDomain.NewVerdict(opp.ID, nil, time.Now())
}
