package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	blockchainDomain "github.com/fd1az/arbguard/business/blockchain/domain"
	blockchainDI "github.com/fd1az/arbguard/business/blockchain/di"
	sessionDI "github.com/fd1az/arbguard/business/session/di"
	"github.com/fd1az/arbguard/pkg/ui"
)

const chainRefreshInterval = 15 * time.Second

func newRunCmd(opts *options) *cobra.Command {
	var cli bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the user's scan loop",
		Long:  "Starts the periodic scan loop for --user. The dashboard is the default; --cli logs to stderr instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cli {
				return runCLI(cmd.Context(), opts)
			}
			return runTUI(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&cli, "cli", false, "log to stderr instead of showing the dashboard")
	return cmd
}

func runCLI(ctx context.Context, opts *options) error {
	app, err := bootAndStart(ctx, opts, bootOptions{serve: true, modules: pipelineModules()})
	if err != nil {
		return err
	}
	defer app.Close()

	manager := sessionDI.GetManager(app.mono.Services())
	if err := manager.Start(ctx, opts.userID); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	<-ctx.Done()
	app.log.Info(context.Background(), "shutting down", "user", opts.userID)
	return manager.Stop(opts.userID)
}

func runTUI(ctx context.Context, opts *options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app, err := boot(ctx, opts, bootOptions{tui: true, serve: true, modules: pipelineModules()})
	if err != nil {
		return err
	}
	defer app.Close()

	services := app.mono.Services()
	if heads := blockchainDI.GetHeadPoller(services); heads != nil {
		heads.OnBlock(func(b *blockchainDomain.Block) {
			ui.Send(ui.BlockMsg{Number: b.Number, Timestamp: b.Timestamp})
		})
	}

	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}
	ui.OnKillSwitch = func() {
		manager := sessionDI.GetManager(services)
		if err := manager.KillSwitch(ctx, opts.userID, "operator"); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}
	}

	p := ui.NewProgram()

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}
		errCh <- startPipeline(ctx, app, opts.userID)
	}()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	cancel()
	return <-errCh
}

// startPipeline starts the modules and the session while the dashboard
// reports each step, then streams chain status and gas prices until ctx
// ends.
func startPipeline(ctx context.Context, app *application, userID string) error {
	ui.Send(ui.StartupMsg{Step: "config", Status: "connected", Message: app.cfg.App.Environment})

	chain := "connecting"
	if app.cfg.Demo.Enabled {
		chain = "demo"
	}
	ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connecting", Message: chain})
	if err := app.start(ctx); err != nil {
		ui.Send(ui.StartupMsg{Step: "ethereum", Status: "failed", Message: err.Error()})
		ui.Send(ui.ErrorMsg{Error: err})
		return err
	}
	ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connected"})
	ui.Send(ui.StartupMsg{Step: "reference", Status: "connected"})

	services := app.mono.Services()
	chainSvc := blockchainDI.GetBlockchainService(services)
	manager := sessionDI.GetManager(services)
	if err := manager.Start(ctx, userID); err != nil {
		ui.Send(ui.StartupMsg{Step: "session", Status: "failed", Message: err.Error()})
		return err
	}
	ui.Send(ui.StartupMsg{Step: "session", Status: "connected", Message: userID})

	ticker := time.NewTicker(chainRefreshInterval)
	defer ticker.Stop()
	for {
		status := chainSvc.ConnectionStatus()
		ui.Send(ui.ConnectionStatusMsg{
			Name:      "ethereum",
			Connected: status.State == blockchainDomain.StateConnected,
			Latency:   status.Latency,
		})
		if price, err := chainSvc.GasPrice(ctx); err == nil {
			ui.Send(ui.GasPriceMsg{GweiPrice: price.Gwei()})
		}
		select {
		case <-ctx.Done():
			return manager.Stop(userID)
		case <-ticker.C:
		}
	}
}
