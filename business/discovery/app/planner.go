package app

import (
	"iter"

	"github.com/fd1az/arbguard/business/discovery/domain"
)

// Planner combines cycle enumeration over a validated universe with the
// optional cross-chain routes.
type Planner struct {
	universe   domain.Universe
	chains     []domain.Chain
	crossTok   []string
	quote      string
	resolve    Resolver
	crossChain bool
}

type PlannerOption func(*Planner)

// WithCrossChain enables two-leg routes between chains for tokens, priced in quote.
func WithCrossChain(chains []domain.Chain, tokens []string, quote string, resolve Resolver) PlannerOption {
	return func(p *Planner) {
		p.chains = chains
		p.crossTok = tokens
		p.quote = quote
		p.resolve = resolve
		p.crossChain = len(chains) >= 2 && resolve != nil
	}
}

func NewPlanner(u domain.Universe, opts ...PlannerOption) (*Planner, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	p := &Planner{universe: u}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Planner) Universe() domain.Universe { return p.universe }

// Routes yields the cycles first, then the cross-chain routes.
func (p *Planner) Routes(prune Pruner) iter.Seq[domain.Route] {
	return func(yield func(domain.Route) bool) {
		for r := range Cycles(p.universe, prune) {
			if !yield(r) {
				return
			}
		}
		if !p.crossChain {
			return
		}
		for r := range CrossChain(p.chains, p.crossTok, p.quote, p.resolve) {
			if prune != nil && prune(r.Legs[:1]) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}
