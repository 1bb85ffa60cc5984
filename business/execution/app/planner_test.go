package app

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	"github.com/fd1az/arbguard/business/execution/infra/router"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	safetyDomain "github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
)

func TestPlanner_ChainsMinimumOutputs(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	p := testPlanner()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	params, err := p.Plan(roundTrip(t), owner)
	require.NoError(t, err)
	require.Len(t, params.Legs, 2)

	first, second := params.Legs[0], params.Legs[1]
	assert.Equal(t, "0.4975 WETH", first.MinOut.String())
	assert.Equal(t, "0.4975 WETH", second.AmountIn.String())
	assert.Equal(t, "999.975 USDC", second.ExpectedOut.String())
	assert.Equal(t, "994.975125 USDC", second.MinOut.String())

	wantRouter := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	assert.Equal(t, wantRouter, first.Router, "venue lookup is case-insensitive")
	require.NotNil(t, first.Call)
	assert.Equal(t, owner, first.Call.From)
	assert.Equal(t, uint64(250_000), first.Call.Gas)

	swap, err := router.UnpackSwap(second.Call.Data)
	require.NoError(t, err)
	assert.Zero(t, second.AmountIn.Raw().Cmp(swap.AmountIn))
	assert.Zero(t, second.MinOut.Raw().Cmp(swap.AmountOutMin))
	assert.Equal(t, []common.Address{asset.WETH.Address(), asset.USDC.Address()}, swap.Path)
	assert.Equal(t, owner, swap.Recipient)
	assert.Equal(t, params.Deadline.Unix(), swap.Deadline.Int64())

	cfg := safetyDomain.DefaultTxGuardConfig()
	assert.NoError(t, safetyDomain.ValidateDeadline(params.Deadline, now, cfg.DeadlineWindow()))
	for _, leg := range params.Legs {
		assert.NoError(t, safetyDomain.ValidateSlippage(leg.ExpectedOut.ToDecimal(), leg.MinOut.ToDecimal(), cfg.MaxSlippagePercent))
	}
}

func TestPlanner_DefaultRouter(t *testing.T) {
	p := NewPlanner(PlannerConfig{TxGuard: safetyDomain.DefaultTxGuardConfig()})
	assert.Equal(t, router.UniswapV2Router02, p.Router("unknown"))
}

func TestPlanner_Rejects(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	p := testPlanner()

	_, err := p.Plan(&arbDomain.Opportunity{ID: "empty"}, owner)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput), "got %v", err)

	opp := roundTrip(t)
	eth, perr := asset.ParseString(asset.ETH, "0.5")
	require.NoError(t, perr)
	opp.Quotes = []*pricingDomain.Quote{{AmountIn: opp.StartAmount, AmountOut: eth, Venue: "v1", ChainID: 1}}
	_, err = p.Plan(opp, owner)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnsupportedRoute), "got %v", err)
}
