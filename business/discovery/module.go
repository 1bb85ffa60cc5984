// Package discovery implements route enumeration over the configured
// token and venue universe.
package discovery

import (
	"context"
	"strings"

	"github.com/fd1az/arbguard/business/discovery/app"
	discoveryDI "github.com/fd1az/arbguard/business/discovery/di"
	"github.com/fd1az/arbguard/business/discovery/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/monolith"
)

type Module struct{}

func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, discoveryDI.Planner, func(sr di.ServiceRegistry) *app.Planner {
		cfg := sr.Get("config").(*config.Config)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		p, err := NewPlanner(cfg, registry)
		if err != nil {
			panic("failed to build route planner: " + err.Error())
		}
		return p
	})
	return nil
}

// Startup resolves the planner so universe errors fail the boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	p := discoveryDI.GetPlanner(mono.Services())
	u := p.Universe()
	mono.Logger().Info(ctx, "route universe ready",
		"tokens", len(u.Tokens), "venues", len(u.Venues), "max_hops", u.MaxHops,
		"cycles", app.Count(u), "cross_chain", mono.Config().Discovery.CrossChain)
	return nil
}

// NewPlanner builds the planner from the discovery config section.
func NewPlanner(cfg *config.Config, registry *asset.Registry) (*app.Planner, error) {
	chainID := cfg.Ethereum.ChainID

	u := domain.Universe{MaxHops: cfg.Discovery.MaxHops}
	for _, sym := range cfg.Discovery.Tokens {
		a, ok := registry.BySymbol(chainID, sym)
		if !ok {
			return nil, apperror.New(apperror.CodeUnknownToken,
				apperror.WithContextf("%s on chain %d", sym, chainID), apperror.WithRetryable(false))
		}
		u.Tokens = append(u.Tokens, a)
	}

	venueChain := make(map[string]uint64, len(cfg.Venues))
	for _, v := range cfg.Venues {
		venueChain[v.Name] = v.ChainID
	}
	names := cfg.Discovery.Venues
	if len(names) == 0 {
		for _, v := range cfg.Venues {
			if v.ChainID == chainID {
				names = append(names, v.Name)
			}
		}
	}
	for _, name := range names {
		u.Venues = append(u.Venues, domain.Venue{Name: name, ChainID: venueChain[name]})
	}

	var opts []app.PlannerOption
	if cfg.Discovery.CrossChain {
		chains := make([]domain.Chain, 0, len(cfg.Chains))
		for _, ch := range cfg.Chains {
			chains = append(chains, domain.Chain{Name: ch.Name, ChainID: ch.ChainID, Venue: ch.Venue, BridgeTime: ch.BridgeTime})
		}
		tokens := cfg.Discovery.CrossChainTokens
		if len(tokens) == 0 {
			tokens = cfg.Discovery.Tokens
		}
		opts = append(opts, app.WithCrossChain(chains, upper(tokens), strings.ToUpper(cfg.Discovery.QuoteToken), registry.BySymbol))
	}
	return app.NewPlanner(u, opts...)
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
