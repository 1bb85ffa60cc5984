package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fd1az/arbguard/business/arbitrage"
	"github.com/fd1az/arbguard/business/blockchain"
	"github.com/fd1az/arbguard/business/discovery"
	"github.com/fd1az/arbguard/business/execution"
	"github.com/fd1az/arbguard/business/pricing"
	"github.com/fd1az/arbguard/business/risk"
	riskDI "github.com/fd1az/arbguard/business/risk/di"
	"github.com/fd1az/arbguard/business/safety"
	"github.com/fd1az/arbguard/business/session"
	"github.com/fd1az/arbguard/internal/apm"
	"github.com/fd1az/arbguard/internal/config"
	"github.com/fd1az/arbguard/internal/health"
	"github.com/fd1az/arbguard/internal/logger"
	"github.com/fd1az/arbguard/internal/metrics"
	"github.com/fd1az/arbguard/internal/monolith"
	"github.com/fd1az/arbguard/pkg/ui"
)

const (
	defaultHealthPort     = 8081
	defaultPrometheusPort = 9090
	shutdownTimeout       = 5 * time.Second
)

// pipelineModules returns every module in dependency order.
func pipelineModules() []monolith.Module {
	return []monolith.Module{
		&blockchain.Module{}, // gas prices, heads and the chain client
		&pricing.Module{},    // quotes and reference prices
		&discovery.Module{},  // route generation
		&arbitrage.Module{},  // evaluation
		&safety.Module{},     // gateway
		&risk.Module{},       // ledger
		&execution.Module{},  // planner and coordinator
		&session.Module{},    // per-user pipelines
	}
}

// riskModules is the minimal set behind the risk commands.
func riskModules() []monolith.Module {
	return []monolith.Module{&risk.Module{}}
}

type bootOptions struct {
	tui bool
	// quiet discards logs so command output stays readable.
	quiet bool
	// serve starts the health endpoint.
	serve   bool
	modules []monolith.Module
}

// application is a started monolith with its telemetry.
type application struct {
	cfg   *config.Config
	log   logger.LoggerInterface
	mono  *monolith.App
	trace apm.TraceProvider
	stop  []func(ctx context.Context) error

	modules []monolith.Module
	serve   bool
	userID  string
}

// Close stops the servers, then the modules, then telemetry.
func (a *application) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.stop) - 1; i >= 0; i-- {
		if err := a.stop[i](ctx); err != nil {
			a.log.Warn(ctx, "shutdown step failed", "error", err)
		}
	}
	if a.mono != nil {
		if err := a.mono.Close(); err != nil {
			a.log.Error(ctx, "module shutdown failed", "error", err)
		}
	}
	if err := a.trace.Stop(); err != nil {
		a.log.Warn(ctx, "tracer shutdown failed", "error", err)
	}
}

func loadConfig(path string, tui bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.TUIMode = tui
	return cfg, nil
}

// boot loads the config, wires telemetry and registers the requested
// modules without starting them.
func boot(ctx context.Context, opts *options, b bootOptions) (*application, error) {
	cfg, err := loadConfig(opts.configPath, b.tui)
	if err != nil {
		return nil, err
	}

	// The dashboard owns the terminal.
	var out io.Writer = os.Stderr
	switch {
	case b.tui:
		out = ui.NewLogWriter()
	case b.quiet:
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	app := &application{cfg: cfg, log: log}
	app.trace = newTraceProvider(cfg.Telemetry, log)
	if cfg.Telemetry.Enabled {
		if err := startMetrics(app); err != nil {
			app.Close()
			return nil, err
		}
	}

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}
	app.mono = mono

	if err := mono.RegisterModules(b.modules...); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	app.modules, app.serve, app.userID = b.modules, b.serve, opts.userID
	return app, nil
}

// start starts the registered modules and, when requested, the health
// endpoint.
func (a *application) start(ctx context.Context) error {
	if err := a.mono.StartModules(ctx, a.modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	if a.serve {
		if err := startHealth(a); err != nil {
			// Health is diagnostic; a busy port must not stop trading.
			a.log.Warn(ctx, "health server unavailable", "error", err)
		}
	}
	a.log.Info(ctx, "arbguard started", "version", version, "environment", a.cfg.App.Environment,
		"demo", a.cfg.Demo.Enabled)
	return nil
}

// bootAndStart is boot followed by start.
func bootAndStart(ctx context.Context, opts *options, b bootOptions) (*application, error) {
	app, err := boot(ctx, opts, b)
	if err != nil {
		return nil, err
	}
	if err := app.start(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func newTraceProvider(cfg config.TelemetryConfig, log logger.LoggerInterface) apm.TraceProvider {
	if !cfg.Enabled {
		return apm.NewTraceProvider(log)
	}
	return apm.NewTraceProvider(log,
		apm.WithProvider(apm.ParseProvider(cfg.TraceProvider)),
		apm.WithServiceName(cfg.ServiceName),
		apm.WithEndpoint(cfg.OTLPEndpoint),
		apm.WithHeaders(cfg.OTLPHeaders),
	)
}

func startMetrics(app *application) error {
	cfg := app.cfg.Telemetry
	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if cfg.MetricsOTLP && cfg.OTLPEndpoint != "" {
		opts = append(opts, metrics.WithProviderConfig(
			metrics.NewOTLPConfig(cfg.OTLPEndpoint, exporterHeaders(cfg.OTLPHeaders), true)))
	}
	provider, err := metrics.NewMetricProvider(opts...)
	if err != nil {
		return fmt.Errorf("failed to create metric provider: %w", err)
	}
	app.stop = append(app.stop, provider.Shutdown)

	port := cfg.PrometheusPort
	if port == 0 {
		port = defaultPrometheusPort
	}
	srv := metrics.NewServer(app.log, metrics.WithPort(port))
	srv.Start()
	app.stop = append(app.stop, srv.Stop)
	return nil
}

// exporterHeaders parses "k=v,k2=v2" the same way the trace exporter does.
func exporterHeaders(raw string) map[string]string {
	var o apm.Options
	apm.WithHeaders(raw)(&o)
	return o.Headers
}

func startHealth(app *application) error {
	port := app.cfg.Telemetry.HealthPort
	if port == 0 {
		port = defaultHealthPort
	}
	srv := health.NewServer(port, version, app.log)

	if client := app.mono.EthClient(); client != nil {
		srv.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
			n, err := client.BlockNumber(ctx)
			if err != nil {
				return false, err.Error()
			}
			return true, fmt.Sprintf("block %d", n)
		})
	} else {
		srv.RegisterInfoCheck("ethereum", func(context.Context) (bool, string) {
			return true, "not connected (demo)"
		})
	}

	services := app.mono.Services()
	srv.RegisterCheck("risk_store", func(ctx context.Context) (bool, string) {
		if err := riskDI.GetStore(services).Ping(ctx); err != nil {
			return false, err.Error()
		}
		return true, "ok"
	})
	srv.RegisterInfoCheck("trading", func(ctx context.Context) (bool, string) {
		t, err := riskDI.GetLedger(services).Status(ctx, app.userID)
		if err != nil {
			return false, err.Error()
		}
		if t.TradingPaused {
			return false, "paused for " + app.userID
		}
		return true, "active for " + app.userID
	})

	if err := srv.Start(); err != nil {
		return err
	}
	app.stop = append(app.stop, srv.Stop)
	return nil
}
