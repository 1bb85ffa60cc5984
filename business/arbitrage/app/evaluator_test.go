package app

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbguard/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/arbguard/business/blockchain/domain"
	discoveryApp "github.com/fd1az/arbguard/business/discovery/app"
	discoveryDomain "github.com/fd1az/arbguard/business/discovery/domain"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

var dai = asset.MustNewToken(asset.ChainIDEthereum,
	common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), "DAI", 18)

// rateQuoter converts at a fixed rate per IN/OUT symbol pair, default 1.
type rateQuoter struct {
	mu        sync.Mutex
	rates     map[string]decimal.Decimal
	fixed     map[string]string
	liquidity decimal.Decimal
	fail      map[string]bool
	calls     int
}

func newRateQuoter() *rateQuoter {
	return &rateQuoter{
		rates:     map[string]decimal.Decimal{},
		fixed:     map[string]string{},
		fail:      map[string]bool{},
		liquidity: decimal.NewFromInt(1_000_000),
	}
}

func (q *rateQuoter) Quote(_ context.Context, venue string, in asset.Amount, out *asset.Asset) (*pricingDomain.Quote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	key := in.Asset().Symbol() + "/" + out.Symbol()
	if q.fail[key] {
		return nil, apperror.New(apperror.CodeQuoteUnavailable, apperror.WithContext(key))
	}
	var outDec decimal.Decimal
	if s, ok := q.fixed[key]; ok {
		outDec = decimal.RequireFromString(s)
	} else {
		rate, ok := q.rates[key]
		if !ok {
			rate = decimal.NewFromInt(1)
		}
		outDec = in.ToDecimal().Mul(rate)
	}
	return &pricingDomain.Quote{
		AmountIn:     in,
		AmountOut:    asset.FromDecimalFloor(out, outDec),
		Venue:        venue,
		ChainID:      in.Asset().ChainID(),
		LiquidityUSD: q.liquidity,
		ObservedAt:   time.Now(),
	}, nil
}

type usdPrices map[string]float64

func (p usdPrices) USDPrice(_ context.Context, a *asset.Asset) (asset.Price, error) {
	v, ok := p[a.Symbol()]
	if !ok {
		return asset.Price{}, apperror.New(apperror.CodeReferencePriceMissing, apperror.WithContext(a.Symbol()))
	}
	return asset.USDPrice(a, decimal.NewFromFloat(v), time.Now()), nil
}

type fixedGas struct{ gwei int64 }

func (g fixedGas) GasPrice(context.Context) (*blockchainDomain.GasPrice, error) {
	return blockchainDomain.NewGasPrice(big.NewInt(g.gwei*1_000_000_000), time.Now()), nil
}

func stables() usdPrices {
	return usdPrices{"USDC": 1, "USDT": 1, "DAI": 1, "ETH": 1000}
}

// testConfig prices gas at $1 per hop: 100k gas × 10 gwei × $1000.
func testConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Workers:         4,
		PerHopGas:       100_000,
		MinLiquidityUSD: decimal.NewFromInt(50_000),
		MinNetProfitUSD: decimal.NewFromInt(5),
		MaxRiskScore:    7,
		OpportunityTTL:  10 * time.Second,
	}
}

func newTestEvaluator(t *testing.T, q QuoteProvider, anomaly *pricingDomain.AnomalyDetector) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(q, stables(), fixedGas{gwei: 10}, anomaly, testConfig(), logger.NewNop())
	require.NoError(t, err)
	return e
}

func triangle() discoveryDomain.Route {
	return discoveryDomain.Route{
		Kind: discoveryDomain.KindTriangular,
		Legs: []discoveryDomain.Leg{
			{TokenIn: asset.USDC, TokenOut: asset.USDT, Venue: "v1", ChainID: 1},
			{TokenIn: asset.USDT, TokenOut: dai, Venue: "v1", ChainID: 1},
			{TokenIn: dai, TokenOut: asset.USDC, Venue: "v1", ChainID: 1},
		},
	}
}

func usdc(t *testing.T, s string) asset.Amount {
	t.Helper()
	a, err := asset.ParseString(asset.USDC, s)
	require.NoError(t, err)
	return a
}

func TestEvaluateRoute_LossAfterGasIsDiscarded(t *testing.T) {
	q := newRateQuoter()
	q.fixed["USDC/USDT"] = "1005"
	q.fixed["USDT/DAI"] = "1010"
	q.fixed["DAI/USDC"] = "998"
	e := newTestEvaluator(t, q, pricingDomain.NewAnomalyDetector(pricingDomain.DefaultAnomalyConfig()))

	// 998 - 1000 - 3 = -5
	opp, err := e.EvaluateRoute(context.Background(), triangle(), usdc(t, "1000"))
	require.NoError(t, err)
	assert.Nil(t, opp)
	assert.Equal(t, 3, q.calls)
}

func TestEvaluateRoute_Profitable(t *testing.T) {
	q := newRateQuoter()
	q.fixed["USDC/USDT"] = "1005"
	q.fixed["USDT/DAI"] = "1010"
	q.fixed["DAI/USDC"] = "1020"
	e := newTestEvaluator(t, q, nil)

	opp, err := e.EvaluateRoute(context.Background(), triangle(), usdc(t, "1000"))
	require.NoError(t, err)
	require.NotNil(t, opp)

	assert.True(t, opp.Profit.GrossProfit.Equal(decimal.NewFromInt(20)), opp.Profit.GrossProfit.String())
	assert.True(t, opp.Profit.GasCost.Equal(decimal.NewFromInt(3)), opp.Profit.GasCost.String())
	assert.True(t, opp.NetProfit().Equal(decimal.NewFromInt(17)), opp.NetProfit().String())
	assert.True(t, opp.NetProfit().Equal(opp.Profit.GrossProfit.Sub(opp.Profit.GasCost)))
	assert.Equal(t, uint64(300_000), opp.GasCost.GasLimit)
	assert.Equal(t, "1020 USDC", opp.FinalAmount.String())
	assert.Len(t, opp.Quotes, 3)
	assert.False(t, opp.Demo)
	assert.NotEmpty(t, opp.ID)
	assert.Equal(t, opp.CreatedAt.Add(10*time.Second), opp.ExpiresAt)

	// $17 net: 2 pts; worst leg 1020/1010 is ~0.99% off reference: 1 pt.
	assert.Equal(t, domain.RiskScore{Bridge: 0, LowProfit: 2, Spread: 1}, opp.Risk)
	assert.Len(t, opp.ExecutionSteps(), 3)
}

func TestEvaluateRoute_Discards(t *testing.T) {
	tests := []struct {
		name  string
		setup func(q *rateQuoter, a *pricingDomain.AnomalyDetector)
	}{
		{
			name:  "quote unavailable",
			setup: func(q *rateQuoter, _ *pricingDomain.AnomalyDetector) { q.fail["USDT/DAI"] = true },
		},
		{
			name:  "shallow pool",
			setup: func(q *rateQuoter, _ *pricingDomain.AnomalyDetector) { q.liquidity = decimal.NewFromInt(10_000) },
		},
		{
			name:  "unknown pool depth",
			setup: func(q *rateQuoter, _ *pricingDomain.AnomalyDetector) { q.liquidity = decimal.Zero },
		},
		{
			name: "price anomaly",
			setup: func(q *rateQuoter, a *pricingDomain.AnomalyDetector) {
				for range 5 {
					a.AddPrice("1:v1:USDC/USDT", decimal.NewFromInt(1))
				}
				q.fixed["USDC/USDT"] = "1300"
			},
		},
		{
			name:  "below minimum net profit",
			setup: func(q *rateQuoter, _ *pricingDomain.AnomalyDetector) { q.fixed["DAI/USDC"] = "1007" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newRateQuoter()
			q.fixed["DAI/USDC"] = "1020"
			a := pricingDomain.NewAnomalyDetector(pricingDomain.DefaultAnomalyConfig())
			tt.setup(q, a)
			e := newTestEvaluator(t, q, a)

			opp, err := e.EvaluateRoute(context.Background(), triangle(), usdc(t, "1000"))
			require.NoError(t, err)
			assert.Nil(t, opp)
		})
	}
}

func TestEvaluateRoute_AddsOnlyAcceptedPrices(t *testing.T) {
	q := newRateQuoter()
	q.fixed["DAI/USDC"] = "1020"
	a := pricingDomain.NewAnomalyDetector(pricingDomain.DefaultAnomalyConfig())
	e := newTestEvaluator(t, q, a)

	_, err := e.EvaluateRoute(context.Background(), triangle(), usdc(t, "1000"))
	require.NoError(t, err)
	assert.Len(t, a.History("1:v1:USDC/USDT"), 1)
	assert.Len(t, a.History("1:v1:DAI/USDC"), 1)

	for range 5 {
		a.AddPrice("1:v1:USDT/DAI", decimal.NewFromInt(2))
	}
	_, err = e.EvaluateRoute(context.Background(), triangle(), usdc(t, "1000"))
	require.NoError(t, err)
	assert.Len(t, a.History("1:v1:USDT/DAI"), 6, "rejected price must not enter the history")
}

func TestEvaluateRoute_InvalidInput(t *testing.T) {
	e := newTestEvaluator(t, newRateQuoter(), nil)

	_, err := e.EvaluateRoute(context.Background(), triangle(), asset.NewAmount(dai, big.NewInt(1)))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	short := discoveryDomain.Route{Legs: triangle().Legs[:1]}
	_, err = e.EvaluateRoute(context.Background(), short, usdc(t, "1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func testPlanner(t *testing.T) *discoveryApp.Planner {
	t.Helper()
	p, err := discoveryApp.NewPlanner(discoveryDomain.Universe{
		Tokens:  []*asset.Asset{asset.USDC, asset.USDT, dai},
		Venues:  []discoveryDomain.Venue{{Name: "v1", ChainID: 1}},
		MaxHops: 3,
	})
	require.NoError(t, err)
	return p
}

func TestEvaluateAll_SortsByNetProfit(t *testing.T) {
	q := newRateQuoter()
	q.rates["USDC/USDT"] = decimal.RequireFromString("1.01")
	e := newTestEvaluator(t, q, nil)

	res, err := e.EvaluateAll(context.Background(), testPlanner(t), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, 12, res.Evaluated)

	// Every cycle through USDC→USDT earns $10 gross; gas is $1 per hop.
	require.Len(t, res.Opportunities, 5)
	want := []string{"8", "8", "7", "7", "7"}
	for i, opp := range res.Opportunities {
		assert.True(t, opp.NetProfit().Equal(decimal.RequireFromString(want[i])),
			"opportunity %d: %s", i, opp)
	}
	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, 2, best.Route.Hops())
	assert.Equal(t, 7, res.Discarded[domain.DiscardUnprofitable])
}

func TestEvaluateAll_MaxRoutes(t *testing.T) {
	q := newRateQuoter()
	cfg := testConfig()
	cfg.MaxRoutes = 3
	e, err := NewEvaluator(q, stables(), fixedGas{gwei: 10}, nil, cfg, logger.NewNop())
	require.NoError(t, err)

	res, err := e.EvaluateAll(context.Background(), testPlanner(t), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Evaluated)
	assert.Empty(t, res.Opportunities)
}

func TestScanState_PrunesDeadLegs(t *testing.T) {
	s := newScanState()
	prune := s.pruner()
	leg := discoveryDomain.Leg{TokenIn: asset.USDT, TokenOut: dai, Venue: "v1", ChainID: 1}

	assert.False(t, prune([]discoveryDomain.Leg{leg}))
	s.dead.Store(legKey("v1", asset.USDT, dai), struct{}{})
	assert.True(t, prune([]discoveryDomain.Leg{leg}))
	assert.False(t, prune([]discoveryDomain.Leg{{TokenIn: dai, TokenOut: asset.USDT, Venue: "v1", ChainID: 1}}))
}

func TestStartAmount(t *testing.T) {
	e, err := NewEvaluator(newRateQuoter(), usdPrices{"WETH": 2500}, fixedGas{gwei: 1}, nil, testConfig(), logger.NewNop())
	require.NoError(t, err)

	amt, err := e.StartAmount(context.Background(), asset.WETH, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "0.4 WETH", amt.String())

	_, err = e.StartAmount(context.Background(), asset.WBTC, decimal.NewFromInt(1000))
	assert.True(t, apperror.HasCode(err, apperror.CodeReferencePriceMissing))
}
