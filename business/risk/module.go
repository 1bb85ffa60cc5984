// Package risk implements the risk bounded context: the persistent per-user
// ledger, its circuit breaker and the kill switch.
package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/business/risk/app"
	riskDI "github.com/fd1az/arbguard/business/risk/di"
	"github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/business/risk/infra/sqlite"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/monolith"
)

// Module implements the risk bounded context.
type Module struct{}

// RegisterServices registers the store and the ledger.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, riskDI.Store, func(sr di.ServiceRegistry) *sqlite.Store {
		cfg := sr.Get("config").(*config.Config)
		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			panic("failed to open risk store: " + err.Error())
		}
		return store
	})

	di.RegisterToken(c, riskDI.Ledger, func(sr di.ServiceRegistry) *app.Ledger {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ledger, err := app.NewLedger(riskDI.GetStore(sr), Limits(cfg.Risk), log)
		if err != nil {
			panic("failed to create risk ledger: " + err.Error())
		}
		return ledger
	})
	return nil
}

// Startup opens the store and registers it for shutdown.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	store := riskDI.GetStore(mono.Services())
	if err := store.Ping(ctx); err != nil {
		return err
	}
	mono.OnClose(store)
	mono.Logger().Info(ctx, "risk module started", "db", cfg.Storage.Path,
		"daily_loss_limit_usd", cfg.Risk.DailyLossLimitUSD, "auto_pause", cfg.Risk.AutoPause)
	return nil
}

// Limits maps the risk config section.
func Limits(c config.RiskConfig) domain.Limits {
	return domain.Limits{
		DailyLossLimitUSD:      decimal.NewFromFloat(c.DailyLossLimitUSD),
		MaxPositionSizeUSD:     decimal.NewFromFloat(c.MaxPositionSizeUSD),
		MaxSingleLossUSD:       decimal.NewFromFloat(c.MaxSingleLossUSD),
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
		MaxDailyTrades:         c.MaxDailyTrades,
		AutoPause:              c.AutoPause,
	}
}
