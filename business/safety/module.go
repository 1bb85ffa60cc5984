// Package safety implements the safety gateway: independent guards that
// veto unsafe opportunities before anything is signed.
package safety

import (
	"context"

	"github.com/shopspring/decimal"

	blockchainDI "github.com/fd1az/arbguard/business/blockchain/di"
	pricingDI "github.com/fd1az/arbguard/business/pricing/di"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/business/safety/app"
	safetyDI "github.com/fd1az/arbguard/business/safety/di"
	"github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/business/safety/infra/simulation"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/monolith"
)

// Simulation providers.
const (
	ProviderEthCall  = "eth_call"
	ProviderTenderly = "tenderly"
)

// Module implements the safety bounded context.
type Module struct{}

// RegisterServices registers the gateway factory with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, safetyDI.Gateways, func(sr di.ServiceRegistry) safetyDI.GatewayFactory {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		quotes := pricingDI.GetQuoteService(sr)
		reference := pricingDI.GetReferencePrices(sr)
		chain := blockchainDI.GetChainClient(sr)

		gcfg := GatewayConfig(cfg.Safety)
		gcfg.ChainID = cfg.Ethereum.ChainID
		deps := app.Collaborators{Quotes: quotes, Reference: reference}
		if chain != nil {
			deps.Allowances = chain
		}
		var caller simulation.Caller
		if chain != nil {
			caller = chain
		}
		sim, err := newSimulator(cfg, caller)
		if err != nil {
			panic("failed to create simulator: " + err.Error())
		}
		deps.Simulator = sim

		return func(anomaly *pricingDomain.AnomalyDetector) (*app.Gateway, error) {
			d := deps
			d.Anomaly = anomaly
			return app.NewGateway(gcfg, d, log)
		}
	})
	return nil
}

// Startup has nothing to start; gateways are built per session.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	mono.Logger().Info(ctx, "safety module started",
		"simulation", cfg.Simulation.Enabled, "provider", cfg.Simulation.Provider,
		"max_spread_pct", cfg.Safety.MaxSpreadPct)
	return nil
}

func newSimulator(cfg *config.Config, chain simulation.Caller) (app.Simulator, error) {
	if !cfg.Simulation.Enabled {
		return nil, nil
	}
	switch cfg.Simulation.Provider {
	case ProviderTenderly:
		sim, err := simulation.NewTenderlySimulator(simulation.TenderlyConfig{
			URL:       cfg.Simulation.URL,
			AccessKey: cfg.Simulation.AccessKey,
			ChainID:   cfg.Ethereum.ChainID,
			Timeout:   cfg.Simulation.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return sim, nil
	default:
		if chain == nil {
			return nil, nil
		}
		return simulation.NewCallSimulator(chain), nil
	}
}

// GatewayConfig maps the safety config section, keeping defaults for
// unset fields.
func GatewayConfig(c config.SafetyConfig) app.GatewayConfig {
	out := app.DefaultGatewayConfig()
	if c.MaxSpreadPct > 0 {
		out.MaxSpreadPct = decimal.NewFromFloat(c.MaxSpreadPct)
	}
	if c.SpotAmountUSD > 0 {
		out.SpotAmountUSD = decimal.NewFromFloat(c.SpotAmountUSD)
	}
	if c.MaxPriceImpactPct > 0 {
		out.MaxPriceImpactPct = decimal.NewFromFloat(c.MaxPriceImpactPct)
	}
	if c.VerdictTTL > 0 {
		out.VerdictTTL = c.VerdictTTL
	}
	out.TxGuard = TxGuardConfig(c)
	return out
}

// TxGuardConfig maps the transaction guard policy.
func TxGuardConfig(c config.SafetyConfig) domain.TxGuardConfig {
	out := domain.DefaultTxGuardConfig()
	if c.MaxSlippagePct > 0 {
		out.MaxSlippagePercent = decimal.NewFromFloat(c.MaxSlippagePct)
	}
	if c.DeadlineSeconds > 0 {
		out.DeadlineSeconds = c.DeadlineSeconds
	}
	out.CheckRevert = c.CheckRevert
	out.SingleApprove = c.SingleApprove
	return out
}
