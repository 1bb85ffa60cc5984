// Package arbitrage implements the arbitrage bounded context: profitability
// evaluation of discovered routes and reporting of opportunities.
package arbitrage

import (
	"context"

	"github.com/fd1az/arbguard/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/arbguard/business/arbitrage/di"
	"github.com/fd1az/arbguard/business/arbitrage/infra"
	blockchainDI "github.com/fd1az/arbguard/business/blockchain/di"
	discoveryDI "github.com/fd1az/arbguard/business/discovery/di"
	pricingDI "github.com/fd1az/arbguard/business/pricing/di"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/monolith"
	"github.com/fd1az/arbguard/pkg/ui"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.TUIMode {
			return infra.NewTUIReporter(ui.Send)
		}
		return infra.NewConsoleReporter(nil)
	})

	di.RegisterToken(c, arbitrageDI.Detectors, func(sr di.ServiceRegistry) arbitrageDI.DetectorFactory {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		quotes := pricingDI.GetQuoteService(sr)
		reference := pricingDI.GetReferencePrices(sr)
		gas := blockchainDI.GetGasPriceSource(sr)
		planner := discoveryDI.GetPlanner(sr)
		reporter := arbitrageDI.GetReporter(sr)

		return func(anomaly *pricingDomain.AnomalyDetector) (*app.Detector, error) {
			evaluator, err := app.NewEvaluator(quotes, reference, gas, anomaly, EvaluatorConfig(cfg.Evaluator), log)
			if err != nil {
				return nil, err
			}
			return app.NewDetector(planner, evaluator, reporter, app.DetectorConfig{
				TradeSizeUSD: cfg.Discovery.TradeSizeUSDDecimal(),
			}, log), nil
		}
	})

	return nil
}

// Startup starts the reporter.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	reporter := arbitrageDI.GetReporter(mono.Services())
	if err := reporter.Start(ctx); err != nil {
		return err
	}
	mono.OnClose(closerFunc(reporter.Stop))
	mono.Logger().Info(ctx, "arbitrage module started")
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// EvaluatorConfig maps the evaluator config section, keeping defaults for
// unset fields.
func EvaluatorConfig(c config.EvaluatorConfig) app.EvaluatorConfig {
	out := app.DefaultEvaluatorConfig()
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.PerHopGas > 0 {
		out.PerHopGas = c.PerHopGas
	}
	if c.MinLiquidityUSD > 0 {
		out.MinLiquidityUSD = c.MinLiquidityUSDDecimal()
	}
	if c.MinNetProfitUSD > 0 {
		out.MinNetProfitUSD = c.MinNetProfitUSDDecimal()
	}
	if c.MaxRiskScore > 0 {
		out.MaxRiskScore = c.MaxRiskScore
	}
	if c.OpportunityTTL > 0 {
		out.OpportunityTTL = c.OpportunityTTL
	}
	out.MaxRoutes = c.MaxRoutes
	return out
}
