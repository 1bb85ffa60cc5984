package app

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	"github.com/fd1az/arbguard/business/execution/infra/router"
	safetyDomain "github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
)

// PlannerConfig maps venues to their routers.
type PlannerConfig struct {
	// Routers is keyed by lower-cased venue name.
	Routers        map[string]common.Address
	DefaultRouter  common.Address
	GasLimitPerHop uint64
	TxGuard        safetyDomain.TxGuardConfig
}

// Planner turns an opportunity into bounded per-leg transaction requests.
type Planner struct {
	cfg PlannerConfig
	now func() time.Time
}

func NewPlanner(cfg PlannerConfig) *Planner {
	if cfg.GasLimitPerHop == 0 {
		cfg.GasLimitPerHop = 250_000
	}
	if cfg.DefaultRouter == (common.Address{}) {
		cfg.DefaultRouter = router.UniswapV2Router02
	}
	routers := make(map[string]common.Address, len(cfg.Routers))
	for venue, addr := range cfg.Routers {
		routers[strings.ToLower(venue)] = addr
	}
	cfg.Routers = routers
	return &Planner{cfg: cfg, now: time.Now}
}

// Router returns the router serving venue.
func (p *Planner) Router(venue string) common.Address {
	if r, ok := p.cfg.Routers[strings.ToLower(venue)]; ok {
		return r
	}
	return p.cfg.DefaultRouter
}

// Plan builds the parameters for owner. The first leg spends the
// opportunity's start amount; each later leg spends only the previous
// leg's minimum output, with its expected output scaled to match.
func (p *Planner) Plan(opp *arbDomain.Opportunity, owner common.Address) (*safetyDomain.Params, error) {
	if opp == nil || len(opp.Quotes) == 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "opportunity has no quotes")
	}
	now := p.now()
	params := &safetyDomain.Params{
		Owner:    owner,
		Deadline: p.cfg.TxGuard.Deadline(now),
		Legs:     make([]safetyDomain.LegParams, 0, len(opp.Quotes)),
	}
	deadline := big.NewInt(params.Deadline.Unix())
	slippage := p.cfg.TxGuard.MaxSlippagePercent

	var prevMin asset.Amount
	for i, q := range opp.Quotes {
		if q.TokenIn().IsNative() || q.TokenOut().IsNative() {
			return nil, apperror.New(apperror.CodeUnsupportedRoute,
				apperror.WithContextf("leg %d swaps the native coin", i+1))
		}
		in, expected := q.AmountIn, q.AmountOut
		if i > 0 {
			if !prevMin.Asset().Equals(q.TokenIn()) {
				return nil, apperror.Validation(apperror.CodeInvalidInput, "quotes do not chain")
			}
			in = prevMin
			expected = scale(q.AmountOut, in.Raw(), q.AmountIn.Raw())
		}
		minOut := safetyDomain.MinAccepted(expected, slippage)

		r := p.Router(q.Venue)
		data, err := router.PackSwap(router.Swap{
			AmountIn:     in.Raw(),
			AmountOutMin: minOut.Raw(),
			Path:         []common.Address{q.TokenIn().Address(), q.TokenOut().Address()},
			Recipient:    owner,
			Deadline:     deadline,
		})
		if err != nil {
			return nil, err
		}

		params.Legs = append(params.Legs, safetyDomain.LegParams{
			Venue:       q.Venue,
			Router:      r,
			AmountIn:    in,
			ExpectedOut: expected,
			MinOut:      minOut,
			Call: &ethereum.CallMsg{
				From:  owner,
				To:    &r,
				Gas:   p.cfg.GasLimitPerHop,
				Value: big.NewInt(0),
				Data:  data,
			},
		})
		prevMin = minOut
	}
	return params, nil
}

// scale returns out × num / den, rounded down.
func scale(out asset.Amount, num, den *big.Int) asset.Amount {
	if den.Sign() == 0 {
		return asset.Zero(out.Asset())
	}
	raw := new(big.Int).Mul(out.Raw(), num)
	raw.Quo(raw, den)
	return asset.NewAmount(out.Asset(), raw)
}
