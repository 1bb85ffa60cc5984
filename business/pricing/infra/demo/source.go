// Package demo provides labeled synthetic quotes and reference prices for
// running the pipeline without a node. Every quote it produces is marked
// Synthetic so opportunities built from it can never execute for real.
package demo

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/business/pricing/app"
	"github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
)

var (
	_ app.QuoteSource          = (*Source)(nil)
	_ app.ReferencePriceSource = (*Reference)(nil)
)

// USD prices the synthetic market is centred on, by symbol.
var basePrices = map[string]decimal.Decimal{
	"ETH":  decimal.NewFromInt(3000),
	"WETH": decimal.NewFromInt(3000),
	"WBTC": decimal.NewFromInt(60000),
	"POL":  decimal.RequireFromString("0.5"),
	"USDC": decimal.NewFromInt(1),
	"USDT": decimal.NewFromInt(1),
	"DAI":  decimal.NewFromInt(1),
	"USD":  decimal.NewFromInt(1),
}

const (
	defaultGas = 120000
	// maxSkew bounds the fixed per venue, per token price offset.
	maxSkew = 0.004
)

type Config struct {
	Venue   string
	ChainID uint64
	Seed    int64
	// Volatility is the stddev of the per quote multiplicative noise.
	Volatility   float64
	FeeBps       int64
	LiquidityUSD decimal.Decimal
}

// Source quotes from basePrices with a deterministic venue skew plus seeded noise.
type Source struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSource(cfg Config) *Source {
	if cfg.LiquidityUSD.IsZero() {
		cfg.LiquidityUSD = decimal.NewFromInt(5_000_000)
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = 5
	}
	return &Source{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(uint64(cfg.Seed), hash64(cfg.Venue))),
		now: time.Now,
	}
}

func (s *Source) Venue() string   { return s.cfg.Venue }
func (s *Source) ChainID() uint64 { return s.cfg.ChainID }

func (s *Source) Quote(ctx context.Context, in asset.Amount, out *asset.Asset) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pin, ok := s.venuePrice(in.Asset())
	if !ok {
		return nil, apperror.New(apperror.CodeQuoteUnavailable, apperror.WithContextf("demo: no market for %s", in.Asset().Symbol()))
	}
	pout, ok := s.venuePrice(out)
	if !ok {
		return nil, apperror.New(apperror.CodeQuoteUnavailable, apperror.WithContextf("demo: no market for %s", out.Symbol()))
	}

	rate := pin.Div(pout).Mul(decimal.NewFromFloat(1 + s.noise()))
	fee := decimal.NewFromInt(10000 - s.cfg.FeeBps).Div(decimal.NewFromInt(10000))
	value := in.ToDecimal().Mul(rate).Mul(fee)

	return &domain.Quote{
		AmountIn:     in,
		AmountOut:    asset.FromDecimalFloor(out, value),
		Venue:        s.cfg.Venue,
		ChainID:      s.cfg.ChainID,
		EstimatedGas: defaultGas,
		LiquidityUSD: s.cfg.LiquidityUSD,
		Synthetic:    true,
		ObservedAt:   s.now(),
	}, nil
}

func (s *Source) venuePrice(a *asset.Asset) (decimal.Decimal, bool) {
	base, ok := basePrices[strings.ToUpper(a.Symbol())]
	if !ok {
		return decimal.Zero, false
	}
	return base.Mul(decimal.NewFromFloat(1 + skew(s.cfg.Venue, a.Symbol()))), true
}

func (s *Source) noise() float64 {
	if s.cfg.Volatility <= 0 {
		return 0
	}
	s.mu.Lock()
	n := s.rng.NormFloat64()
	s.mu.Unlock()
	// clip at 3 sigma so a single draw never looks like a feed fault
	n = max(-3, min(3, n))
	return n * s.cfg.Volatility
}

// skew maps venue+symbol into [-maxSkew, maxSkew].
func skew(venue, symbol string) float64 {
	h := hash64(venue + "|" + strings.ToUpper(symbol))
	return (float64(h%20001)/10000 - 1) * maxSkew
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Reference serves basePrices as reference market prices.
type Reference struct{}

func (Reference) USDPrice(_ context.Context, a *asset.Asset) (asset.Price, error) {
	if a == nil {
		return asset.Price{}, apperror.Validation(apperror.CodeInvalidInput, "nil asset")
	}
	p, ok := basePrices[strings.ToUpper(a.Symbol())]
	if !ok {
		return asset.Price{}, apperror.New(apperror.CodeReferencePriceMissing,
			apperror.WithContextf("demo: %s", a.Symbol()), apperror.WithRetryable(false))
	}
	return asset.USDPrice(a, p, time.Now()), nil
}
