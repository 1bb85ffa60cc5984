package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	pricingApp "github.com/fd1az/arbguard/business/pricing/app"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	tracerName = "safety"
	meterName  = "safety"
)

// GatewayConfig holds the guard bounds.
type GatewayConfig struct {
	MaxSpreadPct      decimal.Decimal
	SpotAmountUSD     decimal.Decimal
	MaxPriceImpactPct decimal.Decimal
	TxGuard           domain.TxGuardConfig
	VerdictTTL        time.Duration
	// ChainID is the chain the allowance reader and simulator serve.
	ChainID uint64
}

// DefaultGatewayConfig returns the default bounds: 1% spread, 1% impact.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxSpreadPct:      decimal.NewFromInt(1),
		SpotAmountUSD:     decimal.NewFromInt(10),
		MaxPriceImpactPct: decimal.NewFromInt(1),
		TxGuard:           domain.DefaultTxGuardConfig(),
		VerdictTTL:        5 * time.Second,
	}
}

// Collaborators are the gateway's data sources. Anomaly, Allowances and
// Simulator may be nil; their guards are then skipped or fail open.
type Collaborators struct {
	Quotes     QuoteProvider
	Reference  pricingApp.ReferencePriceSource
	Anomaly    *pricingDomain.AnomalyDetector
	Allowances AllowanceReader
	Simulator  Simulator
}

type gatewayMetrics struct {
	validations metric.Int64Counter
	vetoes      metric.Int64Counter
	failedOpen  metric.Int64Counter
}

// Gateway composes the guards into a single time-bound verdict. Each
// session owns one.
type Gateway struct {
	guards     []Guard
	approvals  *ApprovalChecker
	simulation *SimulationGuard
	config     GatewayConfig
	logger     logger.LoggerInterface
	now        func() time.Time

	tracer  trace.Tracer
	metrics *gatewayMetrics
}

// NewGateway builds the guard chain in veto order: spread, price impact,
// anomaly, tx parameters, approval, simulation.
func NewGateway(cfg GatewayConfig, deps Collaborators, log logger.LoggerInterface) (*Gateway, error) {
	if deps.Quotes == nil || deps.Reference == nil {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "gateway needs quotes and reference prices")
	}
	if cfg.VerdictTTL <= 0 {
		cfg.VerdictTTL = 5 * time.Second
	}

	g := &Gateway{
		config: cfg,
		logger: log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	g.guards = append(g.guards,
		NewSpreadGuard(deps.Quotes, deps.Reference, cfg.MaxSpreadPct, cfg.SpotAmountUSD),
		NewPriceImpactGuard(deps.Reference, cfg.MaxPriceImpactPct),
	)
	if deps.Anomaly != nil {
		g.guards = append(g.guards, NewAnomalyGuard(deps.Anomaly))
	}
	g.guards = append(g.guards, NewTxParamsGuard(cfg.TxGuard))
	if deps.Allowances != nil {
		g.approvals = NewApprovalChecker(deps.Allowances, cfg.ChainID, cfg.TxGuard.SingleApprove)
	}
	if cfg.TxGuard.CheckRevert {
		g.simulation = NewSimulationGuard(deps.Simulator, log)
	}

	if err := g.initMetrics(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	g.metrics = &gatewayMetrics{}

	g.metrics.validations, err = meter.Int64Counter("safety_validations_total",
		metric.WithDescription("Gateway validations by outcome"))
	if err != nil {
		return err
	}
	g.metrics.vetoes, err = meter.Int64Counter("safety_vetoes_total",
		metric.WithDescription("Guard vetoes by guard"))
	if err != nil {
		return err
	}
	g.metrics.failedOpen, err = meter.Int64Counter("safety_failed_open_total",
		metric.WithDescription("Guards that could not decide and allowed the trade"))
	return err
}

// TTL is how long a safe verdict may be acted on.
func (g *Gateway) TTL() time.Duration { return g.config.VerdictTTL }

// TxGuard returns the transaction parameter policy.
func (g *Gateway) TxGuard() domain.TxGuardConfig { return g.config.TxGuard }

type guardOutcome struct {
	veto       *domain.Veto
	failedOpen bool
}

// Validate runs every guard independently and returns the verdict. The
// verdict is safe only if no guard vetoed; the first veto in guard order
// is surfaced.
func (g *Gateway) Validate(ctx context.Context, opp *arbDomain.Opportunity, params *domain.Params) domain.Verdict {
	if opp == nil || params == nil || len(params.Legs) == 0 {
		id := ""
		if opp != nil {
			id = opp.ID
		}
		return domain.NewVerdict(id, []domain.Veto{{
			Guard:  domain.GuardInput,
			Code:   apperror.CodeInvalidInput,
			Reason: "opportunity and execution parameters are required",
		}}, g.now())
	}

	ctx, span := g.tracer.Start(ctx, "safety.validate",
		trace.WithAttributes(
			attribute.String("opportunity", opp.ID),
			attribute.String("route", opp.Route.String()),
		))
	defer span.End()

	outcomes := make([]guardOutcome, len(g.guards))
	var (
		approvals   []domain.Approval
		approvalOut guardOutcome
	)

	var eg errgroup.Group
	for i, guard := range g.guards {
		eg.Go(func() error {
			outcomes[i] = g.run(ctx, guard.Name(), func() error { return guard.Check(ctx, opp, params) })
			return nil
		})
	}
	if g.approvals != nil {
		eg.Go(func() error {
			approvalOut = g.run(ctx, domain.GuardApproval, func() error {
				var err error
				approvals, err = g.approvals.Plan(ctx, params)
				return err
			})
			return nil
		})
	}
	_ = eg.Wait()

	outcomes = append(outcomes, approvalOut)
	if g.simulation != nil {
		// The swap cannot succeed in a dry run until its approvals are mined.
		if len(approvals) > 0 {
			outcomes = append(outcomes, guardOutcome{failedOpen: true})
			g.logger.Info(ctx, "simulation deferred until approvals are mined", "opportunity", opp.ID,
				"approvals", len(approvals))
		} else {
			outcomes = append(outcomes, g.run(ctx, domain.GuardSimulation, func() error {
				return g.simulation.Check(ctx, opp, params)
			}))
		}
	}

	var (
		vetoes     []domain.Veto
		failedOpen []string
	)
	names := g.outcomeNames()
	for i, o := range outcomes {
		if o.veto != nil {
			vetoes = append(vetoes, *o.veto)
		}
		if o.failedOpen {
			failedOpen = append(failedOpen, names[i])
		}
	}

	verdict := domain.NewVerdict(opp.ID, vetoes, g.now())
	verdict.Approvals = approvals
	verdict.FailedOpen = failedOpen

	result := "safe"
	if !verdict.Safe {
		result = "vetoed"
		span.SetAttributes(attribute.String("veto.guard", verdict.Guard), attribute.String("veto.code", string(verdict.Code)))
		g.logger.Info(ctx, "opportunity vetoed", "opportunity", opp.ID, "guard", verdict.Guard,
			"code", verdict.Code, "reason", verdict.Reason)
	}
	g.metrics.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	return verdict
}

// outcomeNames lists guard names in the order Validate collects outcomes.
func (g *Gateway) outcomeNames() []string {
	names := make([]string, 0, len(g.guards)+2)
	for _, guard := range g.guards {
		names = append(names, guard.Name())
	}
	names = append(names, domain.GuardApproval)
	if g.simulation != nil {
		names = append(names, domain.GuardSimulation)
	}
	return names
}

func (g *Gateway) run(ctx context.Context, name string, check func() error) guardOutcome {
	err := check()
	switch {
	case err == nil:
		return guardOutcome{}
	case errors.Is(err, errFailOpen):
		g.metrics.failedOpen.Add(ctx, 1, metric.WithAttributes(attribute.String("guard", name)))
		return guardOutcome{failedOpen: true}
	}

	g.metrics.vetoes.Add(ctx, 1, metric.WithAttributes(attribute.String("guard", name)))
	return guardOutcome{veto: &domain.Veto{Guard: name, Code: apperror.GetCode(err), Reason: vetoReason(err)}}
}

func vetoReason(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Context != "" {
			return appErr.Message + ": " + appErr.Context
		}
		return appErr.Message
	}
	return err.Error()
}
