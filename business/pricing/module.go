// Package pricing implements the pricing bounded context: venue quotes,
// USD reference prices and price anomaly detection.
package pricing

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/arbguard/business/pricing/app"
	pricingDI "github.com/fd1az/arbguard/business/pricing/di"
	"github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/business/pricing/infra/aggregator"
	"github.com/fd1az/arbguard/business/pricing/infra/binance"
	"github.com/fd1az/arbguard/business/pricing/infra/demo"
	"github.com/fd1az/arbguard/business/pricing/infra/uniswap"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/asset"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
// Venue sources are attached to the QuoteService in Startup, once the
// chain clients are known.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.ReferencePrices, func(sr di.ServiceRegistry) app.ReferencePriceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Demo.Enabled {
			return demo.Reference{}
		}
		registry := sr.Get("assetRegistry").(*asset.Registry)
		provider, err := binance.NewProvider(binance.ProviderConfig{
			BaseURL:           cfg.Reference.BaseURL,
			WebSocketURL:      cfg.Reference.WebSocketURL,
			StaleTimeout:      cfg.Reference.StaleTimeout,
			RequestsPerMinute: cfg.Reference.RequestsPerMinute,
			Stream:            cfg.Reference.Stream,
			Symbols:           referenceSymbols(registry),
		}, log)
		if err != nil {
			panic("failed to create reference price provider: " + err.Error())
		}
		return provider
	})

	di.RegisterToken(c, pricingDI.QuoteService, func(sr di.ServiceRegistry) *app.QuoteService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewQuoteService(log,
			app.WithQuoteTimeout(cfg.Evaluator.QuoteTimeout),
		)
	})

	di.RegisterToken(c, pricingDI.AnomalyDetector, func(sr di.ServiceRegistry) pricingDI.AnomalyDetectorFactory {
		cfg := sr.Get("config").(*config.Config)
		acfg := AnomalyConfig(cfg.Anomaly)
		return func() *domain.AnomalyDetector {
			return domain.NewAnomalyDetector(acfg)
		}
	})

	return nil
}

// Startup attaches one quote source per configured venue and starts the
// reference price stream.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	quotes := pricingDI.GetQuoteService(mono.Services())
	reference := pricingDI.GetReferencePrices(mono.Services())

	if p, ok := reference.(*binance.Provider); ok {
		mono.OnClose(p)
		if err := p.Start(ctx); err != nil {
			return err
		}
	}

	clients := map[uint64]*ethclient.Client{}
	if eth := mono.EthClient(); eth != nil {
		clients[cfg.Ethereum.ChainID] = eth
	}

	for _, v := range cfg.Venues {
		src, err := m.newSource(ctx, mono, v, reference, clients)
		if err != nil {
			return fmt.Errorf("venue %s: %w", v.Name, err)
		}
		quotes.Register(src)
		log.Info(ctx, "quote venue registered", "venue", v.Name, "type", v.Type, "chain", v.ChainID, "demo", cfg.Demo.Enabled)
	}

	log.Info(ctx, "pricing module started", "venues", len(cfg.Venues))
	return nil
}

func (m *Module) newSource(ctx context.Context, mono monolith.Monolith, v config.VenueConfig,
	reference app.ReferencePriceSource, clients map[uint64]*ethclient.Client) (app.QuoteSource, error) {
	cfg := mono.Config()
	log := mono.Logger()

	if cfg.Demo.Enabled {
		return demo.NewSource(demo.Config{
			Venue:      v.Name,
			ChainID:    v.ChainID,
			Seed:       cfg.Demo.Seed,
			Volatility: cfg.Demo.Volatility,
			FeeBps:     int64(v.FeeTier / 100),
		}), nil
	}

	switch v.Type {
	case config.VenueAggregator:
		return aggregator.NewSource(aggregator.Config{
			Venue:             v.Name,
			ChainID:           v.ChainID,
			BaseURL:           v.BaseURL,
			APIKey:            v.APIKey,
			RequestsPerMinute: v.RequestsPerMinute,
			Timeout:           cfg.Evaluator.QuoteTimeout,
		}, log)
	case config.VenueUniswapV3:
		client, err := chainClient(ctx, mono, v.ChainID, clients)
		if err != nil {
			return nil, err
		}
		return uniswap.NewSource(client, uniswap.Config{
			Venue:   v.Name,
			ChainID: v.ChainID,
			Quoter:  v.QuoterAddressHex(),
			Factory: v.FactoryAddressHex(),
			FeeTier: v.FeeTier,
		}, reference, log)
	default:
		return nil, apperror.Validation(apperror.CodeConfigurationError, "unknown venue type "+v.Type)
	}
}

// chainClient returns the RPC client for chainID, dialing chains other than
// the primary one from their chains[].rpc_url.
func chainClient(ctx context.Context, mono monolith.Monolith, chainID uint64, clients map[uint64]*ethclient.Client) (*ethclient.Client, error) {
	if c, ok := clients[chainID]; ok {
		return c, nil
	}
	for _, ch := range mono.Config().Chains {
		if ch.ChainID != chainID || ch.RPCURL == "" {
			continue
		}
		c, err := ethclient.DialContext(ctx, ch.RPCURL)
		if err != nil {
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
				apperror.WithContext(ch.Name), apperror.WithCause(err))
		}
		mono.OnClose(closerFunc(func() error { c.Close(); return nil }))
		clients[chainID] = c
		return c, nil
	}
	return nil, apperror.New(apperror.CodeConfigurationError,
		apperror.WithContextf("no rpc endpoint for chain %d", chainID), apperror.WithRetryable(false))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// AnomalyConfig maps the anomaly config section onto detector settings,
// keeping defaults for unset fields.
func AnomalyConfig(c config.AnomalyConfig) domain.AnomalyConfig {
	out := domain.DefaultAnomalyConfig()
	if c.HistorySize > 0 {
		out.HistorySize = c.HistorySize
	}
	if c.MinPoints > 0 {
		out.MinPoints = c.MinPoints
	}
	if c.CriticalPct > 0 {
		out.CriticalPct = c.CriticalPct
	}
	if c.DeviationPct > 0 {
		out.DeviationPct = c.DeviationPct
	}
	if c.ZScore > 0 {
		out.ZScore = c.ZScore
	}
	if c.ShortWindow > 0 {
		out.ShortWindow = c.ShortWindow
	}
	if c.MaxAge > 0 {
		out.MaxAge = c.MaxAge
	}
	return out
}

func referenceSymbols(r *asset.Registry) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range r.All() {
		if s := a.RefSymbol(); s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
