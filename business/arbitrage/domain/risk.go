package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxRiskScore caps the sum of all risk components.
const MaxRiskScore = 10

// RiskScore is the weighted risk of an opportunity. Each component scores
// 0 to 4 on fixed breakpoints.
type RiskScore struct {
	Bridge    int
	LowProfit int
	Spread    int
}

// Total is the clamped sum of the components.
func (r RiskScore) Total() int {
	return min(MaxRiskScore, r.Bridge+r.LowProfit+r.Spread)
}

// ScoreRisk scores an opportunity from its bridge delay, net profit in USD
// and the largest leg deviation from reference prices in percent.
func ScoreRisk(bridge time.Duration, netProfitUSD, spreadPct decimal.Decimal) RiskScore {
	return RiskScore{
		Bridge:    bridgePoints(bridge),
		LowProfit: profitPoints(netProfitUSD),
		Spread:    spreadPoints(spreadPct),
	}
}

func bridgePoints(d time.Duration) int {
	switch {
	case d <= 0:
		return 0
	case d <= 5*time.Minute:
		return 1
	case d <= 15*time.Minute:
		return 2
	case d <= 30*time.Minute:
		return 3
	default:
		return 4
	}
}

var (
	usd50 = decimal.NewFromInt(50)
	usd20 = decimal.NewFromInt(20)
	usd10 = decimal.NewFromInt(10)
	usd5  = decimal.NewFromInt(5)
)

func profitPoints(net decimal.Decimal) int {
	switch {
	case net.GreaterThanOrEqual(usd50):
		return 0
	case net.GreaterThanOrEqual(usd20):
		return 1
	case net.GreaterThanOrEqual(usd10):
		return 2
	case net.GreaterThanOrEqual(usd5):
		return 3
	default:
		return 4
	}
}

var (
	pctHalf = decimal.RequireFromString("0.5")
	pct1    = decimal.NewFromInt(1)
	pct2    = decimal.NewFromInt(2)
	pct5    = decimal.NewFromInt(5)
)

func spreadPoints(pct decimal.Decimal) int {
	switch {
	case pct.LessThan(pctHalf):
		return 0
	case pct.LessThan(pct1):
		return 1
	case pct.LessThan(pct2):
		return 2
	case pct.LessThan(pct5):
		return 3
	default:
		return 4
	}
}

// RiskFactor represents a risk factor for an arbitrage opportunity.
type RiskFactor struct {
	Name        string
	Description string
	Severity    string // "low", "medium", "high"
}

// Factors lists the non-zero components for display.
func (r RiskScore) Factors() []RiskFactor {
	var out []RiskFactor
	if r.Bridge > 0 {
		out = append(out, RiskFactor{"bridge", fmt.Sprintf("cross-chain settlement delay (%d pts)", r.Bridge), severity(r.Bridge)})
	}
	if r.LowProfit > 0 {
		out = append(out, RiskFactor{"low_profit", fmt.Sprintf("thin absolute profit (%d pts)", r.LowProfit), severity(r.LowProfit)})
	}
	if r.Spread > 0 {
		out = append(out, RiskFactor{"spread", fmt.Sprintf("quotes far from reference, possible manipulation (%d pts)", r.Spread), severity(r.Spread)})
	}
	return out
}

func severity(points int) string {
	switch {
	case points >= 3:
		return "high"
	case points == 2:
		return "medium"
	default:
		return "low"
	}
}
