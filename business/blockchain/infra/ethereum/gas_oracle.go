// Package ethereum adapts go-ethereum RPC clients to the blockchain ports.
package ethereum

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbguard/business/blockchain/app"
	"github.com/fd1az/arbguard/business/blockchain/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/cache"
	"github.com/fd1az/arbguard/internal/circuitbreaker"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	tracerName = "blockchain"
	meterName  = "blockchain"
)

var _ app.GasPriceSource = (*GasOracle)(nil)

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	ChainID  uint64
	CacheTTL time.Duration
	// MaxGasPrice rejects readings above it. Nil disables the cap.
	MaxGasPrice *big.Int
}

// DefaultGasOracleConfig caches for about one block and caps at maxGwei.
func DefaultGasOracleConfig(chainID uint64, maxGwei float64) GasOracleConfig {
	cfg := GasOracleConfig{
		ChainID:  chainID,
		CacheTTL: 12 * time.Second,
	}
	if maxGwei > 0 {
		cfg.MaxGasPrice = decimal.NewFromFloat(maxGwei).Shift(9).BigInt()
	}
	return cfg
}

type gasOracleMetrics struct {
	fetches     metric.Int64Counter
	gwei        metric.Float64Gauge
	cacheHits   metric.Int64Counter
	capExceeded metric.Int64Counter
}

// GasOracle serves SuggestGasPrice through a cache and a breaker.
type GasOracle struct {
	config GasOracleConfig
	logger logger.LoggerInterface
	client ethereum.GasPricer

	prices *cache.Cache[uint64, *domain.GasPrice]
	cb     *circuitbreaker.Breaker[*big.Int]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a new gas oracle instance.
func NewGasOracle(client ethereum.GasPricer, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 12 * time.Second
	}
	g := &GasOracle{
		config: cfg,
		logger: log,
		client: client,
		prices: cache.NewSized[uint64, *domain.GasPrice](4, cfg.CacheTTL),
		cb:     circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer: otel.Tracer(tracerName),
	}
	if err := g.initMetrics(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	g.metrics = &gasOracleMetrics{}

	g.metrics.fetches, err = meter.Int64Counter("gas_price_fetches_total",
		metric.WithDescription("Gas price RPC fetches"),
		metric.WithUnit("{fetch}"))
	if err != nil {
		return err
	}
	g.metrics.gwei, err = meter.Float64Gauge("gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"))
	if err != nil {
		return err
	}
	g.metrics.cacheHits, err = meter.Int64Counter("gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"))
	if err != nil {
		return err
	}
	g.metrics.capExceeded, err = meter.Int64Counter("gas_price_cap_exceeded_total",
		metric.WithDescription("Readings rejected above the configured cap"))
	return err
}

// GasPrice returns the cached price or fetches a fresh one. A reading above
// MaxGasPrice is an error: pricing routes with a clamped value would
// understate their cost.
func (g *GasOracle) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price",
		trace.WithAttributes(attribute.Int64("chain_id", int64(g.config.ChainID))))
	defer span.End()

	if price, ok := g.prices.Get(ctx, g.config.ChainID); ok {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.fetches.Add(ctx, 1)
	wei, err := g.cb.Execute(func() (*big.Int, error) {
		return g.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "suggest gas price")
	}

	if g.config.MaxGasPrice != nil && wei.Cmp(g.config.MaxGasPrice) > 0 {
		g.metrics.capExceeded.Add(ctx, 1)
		span.AddEvent("gas_price_exceeded_max", trace.WithAttributes(attribute.String("wei", wei.String())))
		g.logger.Warn(ctx, "gas price exceeds max", "wei", wei.String(), "max", g.config.MaxGasPrice.String())
		return nil, apperror.New(apperror.CodeGasPriceTooHigh,
			apperror.WithContextf("%s wei > %s wei", wei, g.config.MaxGasPrice))
	}

	price := domain.NewGasPrice(wei, time.Now())
	g.prices.Set(ctx, g.config.ChainID, price)
	g.metrics.gwei.Record(ctx, price.Gwei())

	span.SetAttributes(attribute.Float64("gwei", price.Gwei()))
	span.SetStatus(codes.Ok, "fetched")
	return price, nil
}

// StaticGasPrice is a fixed GasPriceSource, used in demo mode.
type StaticGasPrice struct {
	Wei *big.Int
}

func (s StaticGasPrice) GasPrice(context.Context) (*domain.GasPrice, error) {
	return domain.NewGasPrice(s.Wei, time.Now()), nil
}
