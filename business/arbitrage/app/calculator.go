// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/business/arbitrage/domain"
)

var hundred = decimal.NewFromInt(100)

// ProfitCalculator nets route output against gas and applies the surfacing
// thresholds.
type ProfitCalculator struct {
	minNetProfitUSD decimal.Decimal
	maxRiskScore    int
}

// NewProfitCalculator creates a new ProfitCalculator with thresholds.
// maxRiskScore <= 0 disables the risk threshold.
func NewProfitCalculator(minNetProfitUSD decimal.Decimal, maxRiskScore int) *ProfitCalculator {
	return &ProfitCalculator{
		minNetProfitUSD: minNetProfitUSD,
		maxRiskScore:    maxRiskScore,
	}
}

// Calculate computes gross and net profit from the USD values of the start
// and final amounts. Net equals gross minus gas exactly.
func (c *ProfitCalculator) Calculate(startUSD, finalUSD decimal.Decimal, gasCost *domain.GasCost) *domain.ProfitResult {
	gross := finalUSD.Sub(startUSD)
	net := gross.Sub(gasCost.USD)

	netPct := decimal.Zero
	if !startUSD.IsZero() {
		netPct = net.Div(startUSD).Mul(hundred)
	}

	return &domain.ProfitResult{
		StartValue:   startUSD,
		FinalValue:   finalUSD,
		GrossProfit:  gross,
		GasCost:      gasCost.USD,
		NetProfit:    net,
		NetProfitPct: netPct,
		IsProfitable: net.IsPositive(),
	}
}

// MeetsMinimum reports whether the net profit clears the configured floor.
func (c *ProfitCalculator) MeetsMinimum(p *domain.ProfitResult) bool {
	return p.IsProfitable && p.NetProfit.GreaterThan(c.minNetProfitUSD)
}

// AcceptsRisk reports whether the score is below the configured maximum.
func (c *ProfitCalculator) AcceptsRisk(r domain.RiskScore) bool {
	return c.maxRiskScore <= 0 || r.Total() < c.maxRiskScore
}
