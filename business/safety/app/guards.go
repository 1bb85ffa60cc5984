package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	pricingApp "github.com/fd1az/arbguard/business/pricing/app"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

// errFailOpen marks a guard that could not decide and let the trade pass.
var errFailOpen = errors.New("guard failed open")

// SpreadGuard re-quotes the first leg at a small spot size and at the
// trade size and vetoes when the two prices diverge beyond maxPct.
type SpreadGuard struct {
	quotes    QuoteProvider
	reference pricingApp.ReferencePriceSource
	maxPct    decimal.Decimal
	spotUSD   decimal.Decimal
}

func NewSpreadGuard(quotes QuoteProvider, reference pricingApp.ReferencePriceSource, maxPct, spotUSD decimal.Decimal) *SpreadGuard {
	return &SpreadGuard{quotes: quotes, reference: reference, maxPct: maxPct, spotUSD: spotUSD}
}

func (g *SpreadGuard) Name() string { return domain.GuardSpread }

func (g *SpreadGuard) Check(ctx context.Context, _ *arbDomain.Opportunity, params *domain.Params) error {
	leg := params.Legs[0]
	in := leg.AmountIn
	out := leg.ExpectedOut.Asset()

	price, err := g.reference.USDPrice(ctx, in.Asset())
	if err != nil {
		return apperror.Wrap(err, apperror.CodeReferencePriceMissing, in.Asset().Symbol())
	}
	if price.IsZero() {
		return apperror.New(apperror.CodeReferencePriceMissing, apperror.WithContext(in.Asset().Symbol()))
	}
	spotIn := asset.FromDecimalFloor(in.Asset(), g.spotUSD.Div(price.Rate()))
	if spotIn.IsZero() {
		return apperror.Validation(apperror.CodeInvalidInput, "spot amount rounds to zero "+in.Asset().Symbol())
	}

	spot, err := g.quotes.Quote(ctx, leg.Venue, spotIn, out)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeQuoteUnavailable, "spot quote")
	}
	trade, err := g.quotes.Quote(ctx, leg.Venue, in, out)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeQuoteUnavailable, "trade quote")
	}

	spread := pricingDomain.CalculateSpread(trade.Price(), spot.Price())
	if spread.Exceeds(g.maxPct) {
		return apperror.New(apperror.CodeSpreadExceeded,
			apperror.WithContextf("%s %s/%s: %s%% > %s%%", leg.Venue, in.Asset().Symbol(), out.Symbol(),
				spread.Pct.StringFixed(2), g.maxPct.String()))
	}
	return nil
}

// PriceImpactGuard compares each leg's router output with the output
// implied by reference market prices.
type PriceImpactGuard struct {
	reference pricingApp.ReferencePriceSource
	maxPct    decimal.Decimal
}

func NewPriceImpactGuard(reference pricingApp.ReferencePriceSource, maxPct decimal.Decimal) *PriceImpactGuard {
	return &PriceImpactGuard{reference: reference, maxPct: maxPct}
}

func (g *PriceImpactGuard) Name() string { return domain.GuardPriceImpact }

func (g *PriceImpactGuard) Check(ctx context.Context, _ *arbDomain.Opportunity, params *domain.Params) error {
	for i, leg := range params.Legs {
		inUSD, err := g.value(ctx, leg.AmountIn)
		if err != nil {
			return err
		}
		outUSD, err := g.value(ctx, leg.ExpectedOut)
		if err != nil {
			return err
		}
		impact := domain.PriceImpactPct(inUSD, outUSD)
		if impact.GreaterThan(g.maxPct) {
			return apperror.New(apperror.CodePriceImpactExceeded,
				apperror.WithContextf("leg %d on %s: %s%% > %s%%", i+1, leg.Venue,
					impact.StringFixed(2), g.maxPct.String()))
		}
	}
	return nil
}

func (g *PriceImpactGuard) value(ctx context.Context, a asset.Amount) (decimal.Decimal, error) {
	p, err := g.reference.USDPrice(ctx, a.Asset())
	if err != nil {
		return decimal.Zero, apperror.Wrap(err, apperror.CodeReferencePriceMissing, a.Asset().Symbol())
	}
	v, err := p.Value(a)
	if err != nil {
		return decimal.Zero, apperror.Internal(apperror.CodeReferencePriceMissing, a.Asset().Symbol(), err)
	}
	return v, nil
}

// AnomalyGuard re-checks every quoted leg price against the session's
// price history without extending it.
type AnomalyGuard struct {
	detector *pricingDomain.AnomalyDetector
}

func NewAnomalyGuard(detector *pricingDomain.AnomalyDetector) *AnomalyGuard {
	return &AnomalyGuard{detector: detector}
}

func (g *AnomalyGuard) Name() string { return domain.GuardAnomaly }

func (g *AnomalyGuard) Check(_ context.Context, opp *arbDomain.Opportunity, _ *domain.Params) error {
	for _, q := range opp.Quotes {
		res := g.detector.CheckPrice(q.PairKey(), q.Price())
		if !res.Valid {
			return apperror.New(apperror.CodePriceAnomaly,
				apperror.WithContextf("%s %s: %s", q.PairKey(), res.Severity, res.Reason))
		}
	}
	return nil
}

// TxParamsGuard validates slippage bounds and the deadline of every leg.
type TxParamsGuard struct {
	cfg domain.TxGuardConfig
	now func() time.Time
}

func NewTxParamsGuard(cfg domain.TxGuardConfig) *TxParamsGuard {
	return &TxParamsGuard{cfg: cfg, now: time.Now}
}

func (g *TxParamsGuard) Name() string { return domain.GuardTxParams }

func (g *TxParamsGuard) Check(_ context.Context, _ *arbDomain.Opportunity, params *domain.Params) error {
	if !params.Deadline.IsZero() {
		if err := domain.ValidateDeadline(params.Deadline, g.now(), g.cfg.DeadlineWindow()); err != nil {
			return err
		}
	}
	for i, leg := range params.Legs {
		if !leg.MinOut.Asset().Equals(leg.ExpectedOut.Asset()) {
			return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("leg %d: min output asset mismatch", i+1))
		}
		err := domain.ValidateSlippage(leg.ExpectedOut.ToDecimal(), leg.MinOut.ToDecimal(), g.cfg.MaxSlippagePercent)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				appErr.Context = fmt.Sprintf("leg %d: %s", i+1, appErr.Context)
			}
			return err
		}
	}
	return nil
}

// ApprovalChecker compares router allowances with the amounts each leg
// spends and plans exact-amount approvals for the shortfalls.
type ApprovalChecker struct {
	allowances    AllowanceReader
	chainID       uint64
	singleApprove bool
}

func NewApprovalChecker(allowances AllowanceReader, chainID uint64, singleApprove bool) *ApprovalChecker {
	return &ApprovalChecker{allowances: allowances, chainID: chainID, singleApprove: singleApprove}
}

type allowanceKey struct {
	token   common.Address
	spender common.Address
}

// Plan returns the approvals needed before the trade. Legs spending the
// native coin or living on another chain need none.
func (c *ApprovalChecker) Plan(ctx context.Context, params *domain.Params) ([]domain.Approval, error) {
	required := make(map[allowanceKey]*big.Int)
	tokens := make(map[allowanceKey]*asset.Asset)
	var order []allowanceKey

	for _, leg := range params.Legs {
		a := leg.AmountIn.Asset()
		if a.IsNative() || a.ChainID() != c.chainID {
			continue
		}
		k := allowanceKey{token: a.Address(), spender: leg.Router}
		if _, ok := required[k]; !ok {
			required[k] = new(big.Int)
			tokens[k] = a
			order = append(order, k)
		}
		required[k].Add(required[k], leg.AmountIn.Raw())
	}

	var approvals []domain.Approval
	for _, k := range order {
		current, err := c.allowances.Allowance(ctx, k.token, params.Owner, k.spender)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "allowance "+tokens[k].Symbol())
		}
		need := required[k]
		if current.Cmp(need) >= 0 {
			continue
		}
		if !c.singleApprove {
			return nil, apperror.New(apperror.CodeAllowanceTooLow,
				apperror.WithContextf("%s allowance %s < %s", tokens[k].Symbol(), current, need))
		}
		approvals = append(approvals, domain.Approval{
			Token:   tokens[k],
			Spender: k.spender,
			Amount:  new(big.Int).Set(need),
			Current: current,
		})
	}
	return approvals, nil
}

// SimulationGuard dry-runs the first leg's transaction.
type SimulationGuard struct {
	sim    Simulator
	logger logger.LoggerInterface
}

// NewSimulationGuard accepts a nil simulator; the guard then fails open.
func NewSimulationGuard(sim Simulator, log logger.LoggerInterface) *SimulationGuard {
	return &SimulationGuard{sim: sim, logger: log}
}

func (g *SimulationGuard) Name() string { return domain.GuardSimulation }

func (g *SimulationGuard) Check(ctx context.Context, opp *arbDomain.Opportunity, params *domain.Params) error {
	// Fail open in every undecidable case: a missing or broken simulator
	// must not block all trading. The remaining guards and the risk
	// ledger's consecutive-failure limit still bound the trade.
	call := params.Legs[0].Call
	if g.sim == nil || call == nil {
		return fmt.Errorf("%w: no simulator or transaction", errFailOpen)
	}

	res, err := g.sim.Simulate(ctx, *call)
	if err != nil {
		g.logger.Warn(ctx, "simulation unavailable, allowing trade", "opportunity", opp.ID, "error", err)
		return fmt.Errorf("%w: %v", errFailOpen, err)
	}
	if !res.Success {
		reason := res.RevertReason
		if reason == "" {
			reason = "execution reverted"
		}
		return apperror.New(apperror.CodeSimulationReverted, apperror.WithContext(reason))
	}
	return nil
}
