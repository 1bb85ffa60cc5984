package app

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	blockchainApp "github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/business/execution/domain"
	pricingApp "github.com/fd1az/arbguard/business/pricing/app"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	safetyDomain "github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/erc20"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	tracerName = "execution"
	meterName  = "execution"
)

// CoordinatorConfig configures execution.
type CoordinatorConfig struct {
	Submit          SubmitConfig
	VerdictTTL      time.Duration
	ApproveGasLimit uint64
}

func DefaultCoordinatorConfig(chainID uint64) CoordinatorConfig {
	return CoordinatorConfig{
		Submit:          DefaultSubmitConfig(chainID),
		VerdictTTL:      5 * time.Second,
		ApproveGasLimit: 60_000,
	}
}

// Dependencies are the coordinator's collaborators. Chain and Signer may be
// nil, in which case only simulation mode works. Settlement may be nil.
type Dependencies struct {
	Chain      Chain
	Signer     Signer
	Gas        blockchainApp.GasPriceSource
	Reference  pricingApp.ReferencePriceSource
	Ledger     RiskLedger
	Settlement *Settlement
}

// Request is one execution request. Params and Verdict come from the
// safety gateway for the same opportunity.
type Request struct {
	UserID      string
	Opportunity *arbDomain.Opportunity
	Params      *safetyDomain.Params
	Verdict     safetyDomain.Verdict
	Mode        domain.Mode
}

type coordinatorMetrics struct {
	results        metric.Int64Counter
	ledgerFailures metric.Int64Counter
}

// Coordinator signs and submits validated plans and feeds the outcome to
// the risk ledger.
type Coordinator struct {
	deps   Dependencies
	cfg    CoordinatorConfig
	logger logger.LoggerInterface
	now    func() time.Time
	sub    *submitter

	wallets sync.Map // common.Address -> *sync.Mutex

	tracer  trace.Tracer
	metrics *coordinatorMetrics
}

func NewCoordinator(deps Dependencies, cfg CoordinatorConfig, log logger.LoggerInterface) (*Coordinator, error) {
	if deps.Ledger == nil || deps.Reference == nil {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "coordinator needs a ledger and reference prices")
	}
	if cfg.VerdictTTL <= 0 {
		cfg.VerdictTTL = 5 * time.Second
	}
	if cfg.ApproveGasLimit == 0 {
		cfg.ApproveGasLimit = 60_000
	}
	c := &Coordinator{
		deps:   deps,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	if deps.Chain != nil && deps.Signer != nil && deps.Gas != nil {
		c.sub = &submitter{chain: deps.Chain, signer: deps.Signer, gas: deps.Gas, cfg: cfg.Submit, logger: log}
	}
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	c.metrics = &coordinatorMetrics{}

	c.metrics.results, err = meter.Int64Counter("execution_results_total",
		metric.WithDescription("Execution requests by mode and status"))
	if err != nil {
		return err
	}
	c.metrics.ledgerFailures, err = meter.Int64Counter("execution_ledger_failures_total",
		metric.WithDescription("Trade outcomes the risk ledger could not record"))
	return err
}

// Owner is the signing address, or the zero address without a signer.
func (c *Coordinator) Owner() common.Address {
	if c.deps.Signer == nil {
		return common.Address{}
	}
	return c.deps.Signer.Address()
}

// Signer is the configured signer, nil when only simulation is possible.
func (c *Coordinator) Signer() Signer { return c.deps.Signer }

// LockWallet serializes work on the signing wallet. Callers hold it
// across validation and Execute so only one transaction is in flight.
func (c *Coordinator) LockWallet() func() {
	v, _ := c.wallets.LoadOrStore(c.Owner(), &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Execute runs the request and always returns a result; errors are
// reported in it.
func (c *Coordinator) Execute(ctx context.Context, req Request) *domain.Result {
	res := &domain.Result{
		UserID:    req.UserID,
		Mode:      req.Mode,
		StartedAt: c.now(),
		PnLUSD:    decimal.Zero,
		GasUSD:    decimal.Zero,
	}
	if req.Opportunity != nil {
		res.OpportunityID = req.Opportunity.ID
	}

	ctx, span := c.tracer.Start(ctx, "execution.execute", trace.WithAttributes(
		attribute.String("opportunity", res.OpportunityID),
		attribute.String("mode", string(req.Mode)),
	))
	defer func() {
		res.FinishedAt = c.now()
		span.SetAttributes(attribute.String("status", string(res.Status)))
		span.End()
		c.metrics.results.Add(ctx, 1, metric.WithAttributes(
			attribute.String("mode", string(req.Mode)), attribute.String("status", string(res.Status))))
	}()

	if err := c.admit(ctx, req); err != nil {
		res.Fail(domain.StatusRejected, err)
		c.logger.Info(ctx, "execution rejected", "opportunity", res.OpportunityID, "code", res.Code, "reason", res.Reason)
		return res
	}

	if req.Mode == domain.ModeSimulation {
		res.Status = domain.StatusSimulated
		res.PnLUSD = req.Opportunity.NetProfit()
		return res
	}

	c.executeReal(ctx, req, res)
	return res
}

// admit runs every check that needs no transaction.
func (c *Coordinator) admit(ctx context.Context, req Request) error {
	opp := req.Opportunity
	if opp == nil || req.Params == nil || len(req.Params.Legs) == 0 {
		return apperror.Validation(apperror.CodeInvalidInput, "opportunity and parameters are required")
	}
	if _, err := domain.ParseMode(string(req.Mode)); err != nil {
		return err
	}
	if err := req.Verdict.Confirm(opp.ID, c.now(), c.cfg.VerdictTTL); err != nil {
		return err
	}
	if req.Mode == domain.ModeSimulation {
		return c.deps.Ledger.CheckPaused(ctx, req.UserID)
	}

	if opp.Demo {
		return apperror.New(apperror.CodeDemoOpportunity, apperror.WithContext(opp.ID), apperror.WithRetryable(false))
	}
	if opp.Route.IsCrossChain() {
		return apperror.New(apperror.CodeUnsupportedRoute,
			apperror.WithContext("cross-chain routes need a bridge"), apperror.WithRetryable(false))
	}
	if c.sub == nil || !c.deps.Signer.IsAvailable(ctx) {
		return apperror.New(apperror.CodeSignerUnavailable, apperror.WithRetryable(false))
	}
	if req.Params.Owner != c.deps.Signer.Address() {
		return apperror.Validation(apperror.CodeInvalidInput, "parameters were planned for another wallet")
	}

	position, err := c.usdValue(ctx, opp.StartAmount)
	if err != nil {
		return err
	}
	return c.deps.Ledger.PreCheck(ctx, req.UserID, position)
}

func (c *Coordinator) executeReal(ctx context.Context, req Request, res *domain.Result) {
	owner := req.Params.Owner
	start := req.Opportunity.StartAmount.Asset()
	gasWei := new(big.Int)

	before, err := c.deps.Chain.TokenBalance(ctx, start, owner)
	if err != nil {
		res.Fail(domain.StatusRejected, err)
		return
	}

	record := func(kind string, m mined) {
		if m.tx == nil {
			return
		}
		tx := domain.Transaction{Kind: kind, Hash: m.tx.Hash()}
		if m.receipt != nil {
			tx.GasUsed = m.receipt.GasUsed
			tx.Status = m.receipt.Status
		}
		res.Transactions = append(res.Transactions, tx)
		gasWei.Add(gasWei, m.gasWei())
	}

	err = c.send(ctx, req, record)
	res.GasUSD = c.gasUSD(ctx, gasWei)

	if err != nil {
		status := domain.StatusFailed
		if apperror.HasCode(err, apperror.CodeTxReverted) {
			status = domain.StatusReverted
		}
		res.Fail(status, err)
		res.PnLUSD = res.GasUSD.Neg()
		c.logger.Warn(ctx, "execution failed", "opportunity", res.OpportunityID, "status", status,
			"code", res.Code, "reason", res.Reason, "transactions", len(res.Transactions))
		c.feedLedger(ctx, req.UserID, res, true)
		return
	}

	res.Status = domain.StatusConfirmed
	after, err := c.deps.Chain.TokenBalance(ctx, start, owner)
	if err != nil {
		c.logger.Warn(ctx, "final balance unavailable, recording expected profit", "error", err)
		res.PnLUSD = req.Opportunity.NetProfit()
	} else {
		delta := after.ToDecimal().Sub(before.ToDecimal())
		price, perr := c.deps.Reference.USDPrice(ctx, start)
		if perr != nil {
			c.logger.Warn(ctx, "start token price unavailable, recording expected profit", "error", perr)
			res.PnLUSD = req.Opportunity.NetProfit()
		} else {
			res.PnLUSD = delta.Mul(price.Rate()).Sub(res.GasUSD)
		}
	}
	c.logger.Info(ctx, "execution confirmed", "opportunity", res.OpportunityID,
		"pnl_usd", res.PnLUSD.StringFixed(2), "gas_usd", res.GasUSD.StringFixed(2))
	c.feedLedger(ctx, req.UserID, res, false)

	if c.deps.Settlement != nil && res.PnLUSD.IsPositive() && err == nil {
		res.Settlement = c.deps.Settlement.Settle(ctx, after, res.PnLUSD)
	}
}

// send submits the approvals, then each leg in order, stopping at the
// first failure.
func (c *Coordinator) send(ctx context.Context, req Request, record func(string, mined)) error {
	for _, a := range req.Verdict.Approvals {
		m, err := c.sub.submit(ctx, a.Token.Address(), erc20.PackApprove(a.Spender, a.Amount), c.cfg.ApproveGasLimit)
		record(domain.TxApprove, m)
		if err != nil {
			return err
		}
	}
	for i, leg := range req.Params.Legs {
		if leg.Call == nil {
			return apperror.Validation(apperror.CodeInvalidInput, "leg has no transaction")
		}
		m, err := c.sub.submit(ctx, leg.Router, leg.Call.Data, leg.Call.Gas)
		record(domain.TxSwap, m)
		if err != nil {
			c.logger.Warn(ctx, "leg failed", "leg", i+1, "venue", leg.Venue, "error", err)
			return err
		}
	}
	return nil
}

func (c *Coordinator) feedLedger(ctx context.Context, userID string, res *domain.Result, failed bool) {
	out, err := c.deps.Ledger.RecordTrade(ctx, userID, riskDomain.TradeOutcome{
		PnLUSD: res.PnLUSD,
		GasUSD: res.GasUSD,
		Failed: failed,
		At:     c.now(),
	})
	if err != nil {
		c.metrics.ledgerFailures.Add(ctx, 1)
		c.logger.Error(ctx, "failed to record trade outcome", "user", userID, "opportunity", res.OpportunityID, "error", err)
		return
	}
	res.Tripped = out.Opened
}

func (c *Coordinator) usdValue(ctx context.Context, a asset.Amount) (decimal.Decimal, error) {
	price, err := c.deps.Reference.USDPrice(ctx, a.Asset())
	if err != nil {
		return decimal.Zero, apperror.Wrap(err, apperror.CodeReferencePriceMissing, a.Asset().Symbol())
	}
	v, err := price.Value(a)
	if err != nil {
		return decimal.Zero, apperror.Internal(apperror.CodeReferencePriceMissing, a.Asset().Symbol(), err)
	}
	return v, nil
}

// gasUSD values wei of the native coin; zero when no price is known.
func (c *Coordinator) gasUSD(ctx context.Context, wei *big.Int) decimal.Decimal {
	if wei.Sign() == 0 {
		return decimal.Zero
	}
	native := asset.NativeFor(c.cfg.Submit.ChainID)
	if native == nil {
		return decimal.Zero
	}
	v, err := c.usdValue(ctx, asset.NewAmount(native, wei))
	if err != nil {
		c.logger.Warn(ctx, "gas cost not valued", "error", err)
		return decimal.Zero
	}
	return v
}
