package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	discoveryDomain "github.com/fd1az/arbguard/business/discovery/domain"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	sessionDomain "github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/pkg/ui/components"
)

func update(t *testing.T, m Model, msg any) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func opportunity(t *testing.T) *arbDomain.Opportunity {
	t.Helper()
	start, err := asset.ParseString(asset.USDC, "1000")
	require.NoError(t, err)
	route := discoveryDomain.Route{
		Kind: discoveryDomain.KindDirect,
		Legs: []discoveryDomain.Leg{
			{TokenIn: asset.USDC, TokenOut: asset.WETH, Venue: "v1", ChainID: 1},
			{TokenIn: asset.WETH, TokenOut: asset.USDC, Venue: "v2", ChainID: 1},
		},
	}
	profit := &arbDomain.ProfitResult{NetProfit: decimal.NewFromInt(4), IsProfitable: true}
	return arbDomain.NewOpportunity(route, start, start, nil, nil, profit, arbDomain.RiskScore{},
		decimal.Zero, time.Now(), time.Minute)
}

func TestModel_AuditUpdatesOpportunityState(t *testing.T) {
	m := New()
	opp := opportunity(t)

	m = update(t, m, ScanMsg{Routes: 12, Opportunities: 1, Discarded: map[string]int{"unprofitable": 11}})
	m = update(t, m, OpportunityMsg{Opportunity: opp})
	require.Len(t, m.opportunities.Rows(), 1)
	assert.Equal(t, components.StateSurfaced, m.opportunities.Rows()[0].State)

	veto := sessionDomain.NewEntry("alice", sessionDomain.EntryVeto, "spread", time.Now())
	veto.OpportunityID = opp.ID
	veto.Code = apperror.CodeSpreadExceeded
	m = update(t, m, AuditMsg{Entry: veto})

	row := m.opportunities.Rows()[0]
	assert.Equal(t, components.StateVetoed, row.State)
	assert.Equal(t, "spread", row.Detail)

	stats := m.stats.Stats()
	assert.Equal(t, int64(1), stats.Scans)
	assert.Equal(t, int64(12), stats.Routes)
	assert.Equal(t, int64(1), stats.Vetoed)
	assert.Equal(t, 11, stats.Discarded["unprofitable"])
	assert.Equal(t, PhaseDashboard, m.phase)
}

func TestModel_ExecutionOutcomes(t *testing.T) {
	m := New()
	for _, status := range []string{"simulated", "confirmed", "reverted", "rejected"} {
		m = update(t, m, AuditMsg{Entry: sessionDomain.NewEntry("alice", sessionDomain.EntryExecution, status, time.Now())})
	}
	stats := m.stats.Stats()
	assert.Equal(t, int64(2), stats.Executed)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Len(t, m.feed, 4)
}

func TestModel_StartupCompletesDashboard(t *testing.T) {
	m := New()
	m.phase = PhaseStartup
	for i, step := range startupOrder {
		m = update(t, m, StartupMsg{Step: step, Status: "connected"})
		if i < len(startupOrder)-1 {
			assert.Equal(t, PhaseStartup, m.phase)
		}
	}
	assert.True(t, m.startupComplete)
	assert.Equal(t, PhaseDashboard, m.phase)
}

func TestModel_KeepsLastThreeErrors(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m = update(t, m, ErrorMsg{Error: errors.New("boom")})
	}
	assert.Len(t, m.errors, 3)
	assert.Equal(t, int64(5), m.stats.Stats().Errors)
}

func TestModel_PausedBanner(t *testing.T) {
	m := New()
	m = update(t, m, ScanMsg{Routes: 1})

	tracking := riskDomain.NewTracking("alice", riskDomain.Limits{MaxDailyTrades: 10}, time.Now())
	tracking.TradingPaused = true
	m = update(t, m, RiskMsg{Tracking: tracking})
	assert.Contains(t, m.View(), "TRADING PAUSED")

	resumed := *tracking
	resumed.TradingPaused = false
	m = update(t, m, RiskMsg{Tracking: &resumed})
	assert.NotContains(t, m.View(), "TRADING PAUSED")
}
