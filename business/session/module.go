// Package session implements the session context: per-user pipelines
// composing discovery, evaluation, safety, execution and risk behind one
// entry point, plus the audit trail and operator notifications.
package session

import (
	"context"

	arbitrageDI "github.com/fd1az/arbguard/business/arbitrage/di"
	executionDI "github.com/fd1az/arbguard/business/execution/di"
	executionDomain "github.com/fd1az/arbguard/business/execution/domain"
	pricingDI "github.com/fd1az/arbguard/business/pricing/di"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	riskDI "github.com/fd1az/arbguard/business/risk/di"
	safetyDI "github.com/fd1az/arbguard/business/safety/di"
	"github.com/fd1az/arbguard/business/session/app"
	sessionDI "github.com/fd1az/arbguard/business/session/di"
	"github.com/fd1az/arbguard/business/session/infra/tui"
	"github.com/fd1az/arbguard/business/session/infra/webhook"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/di"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/monolith"
	"github.com/fd1az/arbguard/pkg/ui"
)

// Module implements the session bounded context.
type Module struct{}

// RegisterServices registers the notifier and the session manager.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, sessionDI.Notifier, func(sr di.ServiceRegistry) *webhook.Notifier {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Notifier.WebhookURL == "" {
			return nil
		}
		log := sr.Get("logger").(logger.LoggerInterface)
		n, err := webhook.New(webhook.Config{
			URL:       cfg.Notifier.WebhookURL,
			Timeout:   cfg.Notifier.Timeout,
			QueueSize: cfg.Notifier.QueueSize,
		}, log)
		if err != nil {
			panic("failed to create notifier: " + err.Error())
		}
		return n
	})

	di.RegisterToken(c, sessionDI.Manager, func(sr di.ServiceRegistry) *app.Manager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		detectors := arbitrageDI.GetDetectorFactory(sr)
		gateways := safetyDI.GetGatewayFactory(sr)
		deps := app.Dependencies{
			NewAnomaly: pricingDI.GetAnomalyDetectorFactory(sr),
			NewScanner: func(anomaly *pricingDomain.AnomalyDetector) (app.Scanner, error) {
				d, err := detectors(anomaly)
				if err != nil {
					return nil, err
				}
				return d, nil
			},
			NewValidator: func(anomaly *pricingDomain.AnomalyDetector) (app.Validator, error) {
				g, err := gateways(anomaly)
				if err != nil {
					return nil, err
				}
				return g, nil
			},
			Planner:  executionDI.GetPlanner(sr),
			Executor: executionDI.GetCoordinator(sr),
			Ledger:   riskDI.GetLedger(sr),
		}
		if n := sessionDI.GetNotifier(sr); n != nil {
			deps.Notifier = n
		}
		if cfg.TUIMode {
			deps.Observer = tui.NewObserver(ui.Send, deps.Ledger).Observe
		}

		manager, err := app.NewManager(deps, ManagerConfig(cfg.Scan), log)
		if err != nil {
			panic("failed to create session manager: " + err.Error())
		}
		return manager
	})
	return nil
}

// Startup registers the manager and the notifier for shutdown. The manager
// is closed first so loops stop before the notifier drains.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	services := mono.Services()
	if n := sessionDI.GetNotifier(services); n != nil {
		mono.OnClose(n)
	}
	mono.OnClose(sessionDI.GetManager(services))

	mono.Logger().Info(ctx, "session module started", "interval", cfg.Scan.Interval.String(),
		"auto_execute", cfg.Scan.AutoExecute, "auto_mode", cfg.Scan.AutoMode,
		"webhook", cfg.Notifier.WebhookURL != "")
	return nil
}

// ManagerConfig maps the scan config section.
func ManagerConfig(c config.ScanConfig) app.Config {
	cfg := app.DefaultConfig()
	if c.Interval > 0 {
		cfg.Interval = c.Interval
	}
	cfg.AutoExecute = c.AutoExecute
	if mode, err := executionDomain.ParseMode(c.AutoMode); err == nil {
		cfg.AutoMode = mode
	}
	if c.AuditSize > 0 {
		cfg.AuditSize = c.AuditSize
	}
	return cfg
}
