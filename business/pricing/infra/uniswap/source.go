// Package uniswap quotes swaps against a Uniswap V3 fee tier through QuoterV2.
package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbguard/business/pricing/app"
	"github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/cache"
	"github.com/fd1az/arbguard/internal/erc20"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
)

var _ app.QuoteSource = (*Source)(nil)

type sourceMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

type Config struct {
	Venue   string
	ChainID uint64
	Quoter  common.Address
	Factory common.Address
	FeeTier int
	// LiquidityTTL bounds how long a pool depth reading is reused.
	LiquidityTTL time.Duration
}

// Source implements QuoteSource for one fee tier.
type Source struct {
	cfg        Config
	caller     ethereum.ContractCaller
	quoterABI  abi.ABI
	factoryABI abi.ABI
	reference  app.ReferencePriceSource

	poolsMu sync.RWMutex
	pools   map[string]common.Address
	depth   *cache.Cache[common.Address, decimal.Decimal]

	log     logger.LoggerInterface
	tracer  trace.Tracer
	metrics *sourceMetrics
}

// NewSource builds a fee-tier source. reference may be nil, in which case
// quotes carry unknown liquidity.
func NewSource(caller ethereum.ContractCaller, cfg Config, reference app.ReferencePriceSource, log logger.LoggerInterface) (*Source, error) {
	quoter, err := abi.JSON(strings.NewReader(quoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	factory, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	if cfg.FeeTier == 0 {
		cfg.FeeTier = FeeTier030
	}
	if cfg.LiquidityTTL <= 0 {
		cfg.LiquidityTTL = 30 * time.Second
	}

	s := &Source{
		cfg:        cfg,
		caller:     caller,
		quoterABI:  quoter,
		factoryABI: factory,
		reference:  reference,
		pools:      make(map[string]common.Address),
		depth:      cache.New[common.Address, decimal.Decimal](cfg.LiquidityTTL),
		log:        log,
		tracer:     otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Source) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	s.metrics = &sourceMetrics{}

	s.metrics.quotesTotal, err = meter.Int64Counter("uniswap_quotes_total",
		metric.WithDescription("Total quote requests"))
	if err != nil {
		return err
	}
	s.metrics.quoteLatency, err = meter.Float64Histogram("uniswap_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	s.metrics.quoteErrors, err = meter.Int64Counter("uniswap_quote_errors_total",
		metric.WithDescription("Total quote errors"))
	return err
}

func (s *Source) Venue() string   { return s.cfg.Venue }
func (s *Source) ChainID() uint64 { return s.cfg.ChainID }

func (s *Source) Quote(ctx context.Context, in asset.Amount, out *asset.Asset) (*domain.Quote, error) {
	tokenIn, tokenOut := in.Asset(), out
	ctx, span := s.tracer.Start(ctx, "uniswap.quote", trace.WithAttributes(
		attribute.String("venue", s.cfg.Venue),
		attribute.String("token_in", tokenIn.Symbol()),
		attribute.String("token_out", tokenOut.Symbol()),
		attribute.String("amount_in", in.Raw().String()),
	))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("venue", s.cfg.Venue))
	s.metrics.quotesTotal.Add(ctx, 1, attrs)
	start := time.Now()

	if tokenIn.IsNative() || tokenOut.IsNative() {
		return nil, apperror.Validation(apperror.CodeUnknownToken, "native coins must be wrapped before quoting")
	}

	res, err := s.quoteExactInputSingle(ctx, tokenIn.Address(), tokenOut.Address(), in.Raw())
	s.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		s.metrics.quoteErrors.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	liquidity := s.liquidityUSD(ctx, tokenIn, tokenOut)

	span.SetAttributes(
		attribute.String("amount_out", res.AmountOut.String()),
		attribute.Int64("gas_estimate", res.GasEstimate.Int64()),
		attribute.String("liquidity_usd", liquidity.StringFixed(2)),
	)
	s.log.Debug(ctx, "uniswap quote",
		"venue", s.cfg.Venue,
		"token_in", tokenIn.Symbol(),
		"token_out", tokenOut.Symbol(),
		"amount_in", in.Raw().String(),
		"amount_out", res.AmountOut.String(),
	)

	return &domain.Quote{
		AmountIn:     in,
		AmountOut:    asset.NewAmount(tokenOut, res.AmountOut),
		Venue:        s.cfg.Venue,
		ChainID:      s.cfg.ChainID,
		EstimatedGas: res.GasEstimate.Uint64(),
		LiquidityUSD: liquidity,
		ObservedAt:   time.Now(),
	}, nil
}

// quoteExactInputSingle reverts when the pool is missing or too shallow;
// both surface as CodeQuoteUnavailable.
func (s *Source) quoteExactInputSingle(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*quoteResult, error) {
	data, err := s.quoterABI.Pack("quoteExactInputSingle", quoteParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(s.cfg.FeeTier)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "pack quoteExactInputSingle", err)
	}

	raw, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &s.cfg.Quoter, Data: data}, nil)
	if err != nil {
		return nil, classifyCallError(err, fmt.Sprintf("%s quoter", s.cfg.Venue))
	}

	outputs, err := s.quoterABI.Unpack("quoteExactInputSingle", raw)
	if err != nil || len(outputs) < 4 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContextf("%s: undecodable quoter output", s.cfg.Venue), apperror.WithCause(err))
	}
	amountOut, _ := outputs[0].(*big.Int)
	gas, _ := outputs[3].(*big.Int)
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeQuoteUnavailable, apperror.WithContextf("%s: zero output", s.cfg.Venue))
	}
	if gas == nil {
		gas = new(big.Int)
	}
	return &quoteResult{AmountOut: amountOut, GasEstimate: gas}, nil
}

// liquidityUSD values both pool balances at reference prices. Any missing
// piece yields zero, which the evaluator treats as unknown depth.
func (s *Source) liquidityUSD(ctx context.Context, a, b *asset.Asset) decimal.Decimal {
	if s.reference == nil || s.cfg.Factory == (common.Address{}) {
		return decimal.Zero
	}
	pool, err := s.pool(ctx, a, b)
	if err != nil || pool == (common.Address{}) {
		return decimal.Zero
	}

	v, err := s.depth.GetOrLoad(ctx, pool, func(ctx context.Context) (decimal.Decimal, error) {
		total := decimal.Zero
		for _, tok := range []*asset.Asset{a, b} {
			raw, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: ptr(tok.Address()), Data: erc20.PackBalanceOf(pool)}, nil)
			if err != nil {
				return decimal.Zero, err
			}
			bal, err := erc20.UnpackUint256("balanceOf", raw)
			if err != nil {
				return decimal.Zero, err
			}
			px, err := s.reference.USDPrice(ctx, tok)
			if err != nil {
				return decimal.Zero, err
			}
			usd, err := px.Value(asset.NewAmount(tok, bal))
			if err != nil {
				return decimal.Zero, err
			}
			total = total.Add(usd)
		}
		return total, nil
	})
	if err != nil {
		s.log.Debug(ctx, "pool depth unavailable", "venue", s.cfg.Venue, "pool", pool.Hex(), "error", err)
		return decimal.Zero
	}
	return v
}

func (s *Source) pool(ctx context.Context, a, b *asset.Asset) (common.Address, error) {
	key := a.Address().Hex() + b.Address().Hex()
	if a.Address().Cmp(b.Address()) > 0 {
		key = b.Address().Hex() + a.Address().Hex()
	}

	s.poolsMu.RLock()
	addr, ok := s.pools[key]
	s.poolsMu.RUnlock()
	if ok {
		return addr, nil
	}

	data, err := s.factoryABI.Pack("getPool", a.Address(), b.Address(), big.NewInt(int64(s.cfg.FeeTier)))
	if err != nil {
		return common.Address{}, err
	}
	raw, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &s.cfg.Factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	out, err := s.factoryABI.Unpack("getPool", raw)
	if err != nil || len(out) != 1 {
		return common.Address{}, fmt.Errorf("decode getPool: %w", err)
	}
	addr, _ = out[0].(common.Address)

	s.poolsMu.Lock()
	s.pools[key] = addr
	s.poolsMu.Unlock()
	return addr, nil
}

// classifyCallError separates reverts (no pool, no liquidity) from transport failures.
func classifyCallError(err error, ctx string) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "revert") {
		return apperror.New(apperror.CodeQuoteUnavailable, apperror.WithContext(ctx), apperror.WithCause(err), apperror.WithRetryable(false))
	}
	return apperror.New(apperror.CodeEthereumRPCError, apperror.WithContext(ctx), apperror.WithCause(err))
}

func ptr(a common.Address) *common.Address { return &a }
