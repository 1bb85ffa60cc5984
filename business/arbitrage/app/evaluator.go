package app

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/arbguard/business/arbitrage/domain"
	blockchainApp "github.com/fd1az/arbguard/business/blockchain/app"
	discoveryApp "github.com/fd1az/arbguard/business/discovery/app"
	discoveryDomain "github.com/fd1az/arbguard/business/discovery/domain"
	pricingApp "github.com/fd1az/arbguard/business/pricing/app"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	tracerName = "arbitrage"
	meterName  = "arbitrage"
)

// EvaluatorConfig holds the evaluation thresholds.
type EvaluatorConfig struct {
	Workers         int
	PerHopGas       uint64
	MinLiquidityUSD decimal.Decimal
	MinNetProfitUSD decimal.Decimal
	MaxRiskScore    int
	OpportunityTTL  time.Duration
	// MaxRoutes caps the routes evaluated per scan. Zero means unlimited.
	MaxRoutes int
}

// DefaultEvaluatorConfig returns conservative defaults.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Workers:         8,
		PerHopGas:       120_000,
		MinLiquidityUSD: decimal.NewFromInt(50_000),
		MinNetProfitUSD: decimal.NewFromInt(5),
		MaxRiskScore:    7,
		OpportunityTTL:  15 * time.Second,
	}
}

type evaluatorMetrics struct {
	evaluated metric.Int64Counter
	discarded metric.Int64Counter
	surfaced  metric.Int64Counter
	duration  metric.Float64Histogram
}

// Evaluator turns routes into scored opportunities. Each session owns one,
// together with its anomaly detector.
type Evaluator struct {
	quotes     QuoteProvider
	reference  pricingApp.ReferencePriceSource
	gas        blockchainApp.GasPriceSource
	anomaly    *pricingDomain.AnomalyDetector
	calculator *ProfitCalculator
	config     EvaluatorConfig
	logger     logger.LoggerInterface
	now        func() time.Time

	tracer  trace.Tracer
	metrics *evaluatorMetrics
}

// NewEvaluator creates an evaluator. anomaly may be nil to skip price checks.
func NewEvaluator(
	quotes QuoteProvider,
	reference pricingApp.ReferencePriceSource,
	gas blockchainApp.GasPriceSource,
	anomaly *pricingDomain.AnomalyDetector,
	cfg EvaluatorConfig,
	log logger.LoggerInterface,
) (*Evaluator, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	e := &Evaluator{
		quotes:     quotes,
		reference:  reference,
		gas:        gas,
		anomaly:    anomaly,
		calculator: NewProfitCalculator(cfg.MinNetProfitUSD, cfg.MaxRiskScore),
		config:     cfg,
		logger:     log,
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}
	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Evaluator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	e.metrics = &evaluatorMetrics{}

	e.metrics.evaluated, err = meter.Int64Counter("routes_evaluated_total",
		metric.WithDescription("Routes evaluated"))
	if err != nil {
		return err
	}
	e.metrics.discarded, err = meter.Int64Counter("routes_discarded_total",
		metric.WithDescription("Routes discarded by reason"))
	if err != nil {
		return err
	}
	e.metrics.surfaced, err = meter.Int64Counter("opportunities_surfaced_total",
		metric.WithDescription("Opportunities passing profit and risk thresholds"))
	if err != nil {
		return err
	}
	e.metrics.duration, err = meter.Float64Histogram("scan_duration_seconds",
		metric.WithDescription("Duration of a full evaluation pass"),
		metric.WithUnit("s"))
	return err
}

// Anomaly returns the detector consulted at quote time.
func (e *Evaluator) Anomaly() *pricingDomain.AnomalyDetector { return e.anomaly }

// scanState is shared by the evaluations of one pass.
type scanState struct {
	// dead holds venue|in|out keys that returned no quote in this pass.
	dead sync.Map
	// observed holds pair keys already added to the price history in this pass.
	observed sync.Map

	mu        sync.Mutex
	discarded map[string]int
}

func newScanState() *scanState {
	return &scanState{discarded: make(map[string]int)}
}

func legKey(venue string, in, out *asset.Asset) string {
	return venue + "|" + in.ID().String() + "|" + out.ID().String()
}

// pruner skips every route whose latest leg already failed to quote.
func (s *scanState) pruner() discoveryApp.Pruner {
	return func(prefix []discoveryDomain.Leg) bool {
		l := prefix[len(prefix)-1]
		_, dead := s.dead.Load(legKey(l.Venue, l.TokenIn, l.TokenOut))
		return dead
	}
}

func (s *scanState) discard(reason string) {
	s.mu.Lock()
	s.discarded[reason]++
	s.mu.Unlock()
}

// EvaluateRoute quotes route leg by leg starting from start and returns the
// opportunity, or nil when the route is discarded. Discards are not errors;
// an error means the input itself was invalid or ctx ended.
func (e *Evaluator) EvaluateRoute(ctx context.Context, route discoveryDomain.Route, start asset.Amount) (*domain.Opportunity, error) {
	if route.Hops() < 2 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "route needs at least two legs")
	}
	if !start.Asset().Equals(route.Start()) {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			"start amount is "+start.Asset().Symbol()+", route starts with "+route.Start().Symbol())
	}
	opp, _ := e.evaluate(ctx, route, start, nil)
	return opp, ctx.Err()
}

func (e *Evaluator) evaluate(ctx context.Context, route discoveryDomain.Route, start asset.Amount, scan *scanState) (*domain.Opportunity, string) {
	ctx, span := e.tracer.Start(ctx, "arbitrage.evaluate_route",
		trace.WithAttributes(
			attribute.String("route", route.String()),
			attribute.String("kind", string(route.Kind)),
		))
	defer span.End()
	e.metrics.evaluated.Add(ctx, 1)

	opp, reason := e.evaluateLegs(ctx, route, start, scan)
	if opp == nil {
		span.SetAttributes(attribute.String("discarded", reason))
		e.metrics.discarded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		if scan != nil {
			scan.discard(reason)
		}
		return nil, reason
	}
	span.SetAttributes(attribute.String("net_profit_usd", opp.NetProfit().StringFixed(2)))
	e.metrics.surfaced.Add(ctx, 1)
	return opp, ""
}

func (e *Evaluator) evaluateLegs(ctx context.Context, route discoveryDomain.Route, start asset.Amount, scan *scanState) (*domain.Opportunity, string) {
	quotes := make([]*pricingDomain.Quote, 0, route.Hops())
	amount := start

	for i, leg := range route.Legs {
		if i > 0 && !amount.Asset().Equals(leg.TokenIn) {
			amount = bridged(amount, leg.TokenIn)
		}

		q, err := e.quotes.Quote(ctx, leg.Venue, amount, leg.TokenOut)
		if err != nil {
			if scan != nil && (apperror.HasCode(err, apperror.CodeQuoteUnavailable) ||
				apperror.HasCode(err, apperror.CodeInsufficientLiquidity)) {
				scan.dead.Store(legKey(leg.Venue, leg.TokenIn, leg.TokenOut), struct{}{})
			}
			e.logger.Debug(ctx, "route discarded: quote", "route", route.String(), "leg", i, "error", err)
			return nil, domain.DiscardQuote
		}

		if e.config.MinLiquidityUSD.IsPositive() && q.LiquidityUSD.LessThan(e.config.MinLiquidityUSD) {
			e.logger.Debug(ctx, "route discarded: liquidity", "route", route.String(), "venue", q.Venue,
				"liquidity_usd", q.LiquidityUSD.StringFixed(0))
			return nil, domain.DiscardLiquidity
		}

		if !e.checkPrice(ctx, q, scan) {
			return nil, domain.DiscardAnomaly
		}

		quotes = append(quotes, q)
		amount = q.AmountOut
	}

	startPrice, err := e.reference.USDPrice(ctx, start.Asset())
	if err != nil {
		return nil, domain.DiscardReference
	}
	endPrice, err := e.reference.USDPrice(ctx, amount.Asset())
	if err != nil {
		return nil, domain.DiscardReference
	}
	startUSD, _ := startPrice.Value(start)
	finalUSD, _ := endPrice.Value(amount)

	maxSpread, ok := e.maxSpread(ctx, quotes)
	if !ok {
		return nil, domain.DiscardReference
	}

	gasCost, err := e.gasCost(ctx, route)
	if err != nil {
		e.logger.Warn(ctx, "route discarded: gas", "route", route.String(), "error", err)
		return nil, domain.DiscardGas
	}

	profit := e.calculator.Calculate(startUSD, finalUSD, gasCost)
	if !profit.IsProfitable {
		return nil, domain.DiscardUnprofitable
	}
	if !e.calculator.MeetsMinimum(profit) {
		return nil, domain.DiscardBelowMinimum
	}

	risk := domain.ScoreRisk(route.BridgeTime, profit.NetProfit, maxSpread)
	if !e.calculator.AcceptsRisk(risk) {
		e.logger.Info(ctx, "route discarded: risk", "route", route.String(), "risk", risk.Total(),
			"net_usd", profit.NetProfit.StringFixed(2))
		return nil, domain.DiscardRisk
	}

	return domain.NewOpportunity(route, start, amount, quotes, gasCost, profit, risk, maxSpread,
		e.now(), e.config.OpportunityTTL), ""
}

// checkPrice consults the anomaly detector. Accepted prices join the
// history once per pair per pass.
func (e *Evaluator) checkPrice(ctx context.Context, q *pricingDomain.Quote, scan *scanState) bool {
	if e.anomaly == nil {
		return true
	}
	pair := q.PairKey()
	price := q.Price()
	res := e.anomaly.CheckPrice(pair, price)
	if !res.Valid {
		kv := []any{"pair", pair, "price", price.String(), "severity", res.Severity, "reason", res.Reason}
		if res.Severity == pricingDomain.SeverityCritical {
			e.logger.Error(ctx, "price anomaly", kv...)
		} else {
			e.logger.Warn(ctx, "price anomaly", kv...)
		}
		return false
	}
	if scan != nil {
		if _, seen := scan.observed.LoadOrStore(pair, struct{}{}); seen {
			return true
		}
	}
	e.anomaly.AddPrice(pair, price)
	return true
}

// maxSpread is the largest deviation of a leg price from the price implied
// by reference USD prices.
func (e *Evaluator) maxSpread(ctx context.Context, quotes []*pricingDomain.Quote) (decimal.Decimal, bool) {
	usd := make(map[*asset.Asset]decimal.Decimal, len(quotes)+1)
	lookup := func(a *asset.Asset) (decimal.Decimal, bool) {
		if v, ok := usd[a]; ok {
			return v, true
		}
		p, err := e.reference.USDPrice(ctx, a)
		if err != nil || p.IsZero() {
			return decimal.Zero, false
		}
		usd[a] = p.Rate()
		return p.Rate(), true
	}

	maxPct := decimal.Zero
	for _, q := range quotes {
		in, ok := lookup(q.TokenIn())
		if !ok {
			return decimal.Zero, false
		}
		out, ok := lookup(q.TokenOut())
		if !ok {
			return decimal.Zero, false
		}
		spread := pricingDomain.CalculateSpread(q.Price(), in.Div(out))
		if spread.Pct.GreaterThan(maxPct) {
			maxPct = spread.Pct
		}
	}
	return maxPct, true
}

// gasCost prices hops × per-hop gas at the current gas price in USD.
func (e *Evaluator) gasCost(ctx context.Context, route discoveryDomain.Route) (*domain.GasCost, error) {
	price, err := e.gas.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	native := asset.NativeFor(route.Start().ChainID())
	if native == nil {
		return nil, apperror.Validation(apperror.CodeUnknownToken, "no native coin for chain "+asset.ChainName(route.Start().ChainID()))
	}
	nativePrice, err := e.reference.USDPrice(ctx, native)
	if err != nil {
		return nil, err
	}
	gasLimit := uint64(route.Hops()) * e.config.PerHopGas
	return domain.NewGasCost(gasLimit, price.Wei, nativePrice.Rate()), nil
}

// StartAmount sizes a trade of sizeUSD in token a.
func (e *Evaluator) StartAmount(ctx context.Context, a *asset.Asset, sizeUSD decimal.Decimal) (asset.Amount, error) {
	p, err := e.reference.USDPrice(ctx, a)
	if err != nil {
		return asset.Amount{}, err
	}
	if p.IsZero() {
		return asset.Amount{}, apperror.New(apperror.CodeReferencePriceMissing, apperror.WithContext(a.Symbol()))
	}
	return asset.FromDecimalFloor(a, sizeUSD.Div(p.Rate())), nil
}

// EvaluateAll evaluates the routes of source on a bounded worker pool,
// sizing each trade at sizeUSD of its start token, and returns the
// surfaced opportunities sorted by net profit, best first.
func (e *Evaluator) EvaluateAll(ctx context.Context, source RouteSource, sizeUSD decimal.Decimal) (*domain.ScanResult, error) {
	ctx, span := e.tracer.Start(ctx, "arbitrage.evaluate_all")
	defer span.End()

	started := e.now()
	scan := newScanState()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	var (
		mu    sync.Mutex
		opps  []*domain.Opportunity
		count int
	)
	sizes := make(map[*asset.Asset]asset.Amount)

	for route := range source.Routes(scan.pruner()) {
		if gctx.Err() != nil {
			break
		}
		if e.config.MaxRoutes > 0 && count >= e.config.MaxRoutes {
			break
		}
		count++

		startToken := route.Start()
		start, ok := sizes[startToken]
		if !ok {
			amt, err := e.StartAmount(gctx, startToken, sizeUSD)
			if err != nil {
				e.logger.Warn(gctx, "cannot size trade", "token", startToken.Symbol(), "error", err)
				amt = asset.Zero(startToken)
			}
			sizes[startToken] = amt
			start = amt
		}
		if !start.IsPositive() {
			scan.discard(domain.DiscardReference)
			continue
		}

		g.Go(func() error {
			if opp, _ := e.evaluate(gctx, route, start, scan); opp != nil {
				mu.Lock()
				opps = append(opps, opp)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(opps, func(a, b *domain.Opportunity) int {
		return cmp.Or(b.NetProfit().Cmp(a.NetProfit()), cmp.Compare(a.ID, b.ID))
	})

	result := &domain.ScanResult{
		Opportunities: opps,
		Evaluated:     count,
		Discarded:     scan.discarded,
		StartedAt:     started,
		Duration:      e.now().Sub(started),
	}
	e.metrics.duration.Record(ctx, result.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("routes", count),
		attribute.Int("opportunities", len(opps)),
	)
	return result, ctx.Err()
}

// bridged re-denominates amount in the same token on another chain,
// rescaling when the decimals differ.
func bridged(amount asset.Amount, to *asset.Asset) asset.Amount {
	return asset.FromDecimalFloor(to, amount.ToDecimal())
}
