package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	discoveryDomain "github.com/fd1az/arbguard/business/discovery/domain"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/asset"
)

// ExecutionStep represents a step in the arbitrage execution plan.
type ExecutionStep struct {
	Number      int
	Description string
}

// Opportunity is a scored route valid until ExpiresAt. It is never mutated
// after creation; re-scans supersede it.
type Opportunity struct {
	ID          string
	Route       discoveryDomain.Route
	StartAmount asset.Amount
	FinalAmount asset.Amount
	Quotes      []*pricingDomain.Quote
	GasCost     *GasCost
	Profit      *ProfitResult
	Risk        RiskScore
	// MaxSpreadPct is the largest leg deviation from reference prices.
	MaxSpreadPct decimal.Decimal
	// Demo is set when any quote came from the synthetic source.
	Demo      bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewOpportunity assigns an id and the validity window.
func NewOpportunity(route discoveryDomain.Route, start, final asset.Amount, quotes []*pricingDomain.Quote,
	gas *GasCost, profit *ProfitResult, risk RiskScore, maxSpread decimal.Decimal, now time.Time, ttl time.Duration) *Opportunity {
	demo := false
	for _, q := range quotes {
		demo = demo || q.Synthetic
	}
	return &Opportunity{
		ID:           uuid.NewString(),
		Route:        route,
		StartAmount:  start,
		FinalAmount:  final,
		Quotes:       quotes,
		GasCost:      gas,
		Profit:       profit,
		Risk:         risk,
		MaxSpreadPct: maxSpread,
		Demo:         demo,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

func (o *Opportunity) NetProfit() decimal.Decimal {
	if o.Profit == nil {
		return decimal.Zero
	}
	return o.Profit.NetProfit
}

// IsProfitable returns true if this opportunity has positive net profit.
func (o *Opportunity) IsProfitable() bool {
	return o.Profit != nil && o.Profit.IsProfitable
}

func (o *Opportunity) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

func (o *Opportunity) RiskFactors() []RiskFactor { return o.Risk.Factors() }

// ExecutionSteps describes each swap and the bridge hop, in order.
func (o *Opportunity) ExecutionSteps() []ExecutionStep {
	steps := make([]ExecutionStep, 0, len(o.Quotes)+1)
	for i, q := range o.Quotes {
		if i > 0 && o.Route.IsCrossChain() {
			steps = append(steps, ExecutionStep{
				Number: len(steps) + 1,
				Description: fmt.Sprintf("Bridge %s to %s (~%s)", o.Quotes[i-1].TokenOut().Symbol(),
					asset.ChainName(q.ChainID), o.Route.BridgeTime),
			})
		}
		steps = append(steps, ExecutionStep{
			Number:      len(steps) + 1,
			Description: fmt.Sprintf("Swap %s for %s on %s", q.AmountIn, q.AmountOut, q.Venue),
		})
	}
	return steps
}

func (o *Opportunity) String() string {
	return fmt.Sprintf("%s %s net=$%s risk=%d", o.ID[:8], o.Route, o.NetProfit().StringFixed(2), o.Risk.Total())
}

// Discard reasons recorded for routes that are not surfaced.
const (
	DiscardQuote        = "quote_unavailable"
	DiscardLiquidity    = "low_liquidity"
	DiscardAnomaly      = "price_anomaly"
	DiscardReference    = "reference_missing"
	DiscardGas          = "gas_unavailable"
	DiscardUnprofitable = "unprofitable"
	DiscardBelowMinimum = "below_min_profit"
	DiscardRisk         = "risk_too_high"
)

// ScanResult summarizes one evaluation pass.
type ScanResult struct {
	Opportunities []*Opportunity
	Evaluated     int
	Discarded     map[string]int
	StartedAt     time.Time
	Duration      time.Duration
}

// Best returns the most profitable opportunity, if any.
func (r *ScanResult) Best() (*Opportunity, bool) {
	if len(r.Opportunities) == 0 {
		return nil, false
	}
	return r.Opportunities[0], true
}
