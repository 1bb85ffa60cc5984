package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	executionDomain "github.com/fd1az/arbguard/business/execution/domain"
	sessionDI "github.com/fd1az/arbguard/business/session/di"
	sessionDomain "github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/internal/apm"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	tracer      = apm.NewTracer("arbguard.cli")
)

func newScanCmd(opts *options) *cobra.Command {
	var (
		execute bool
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan and print safe opportunities and vetoes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := executionDomain.ParseMode(mode)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := bootAndStart(ctx, opts, bootOptions{quiet: true, modules: pipelineModules()})
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, span := tracer.Start(ctx, "cli.scan", attribute.String("user", opts.userID))
			defer span.End()

			manager := sessionDI.GetManager(app.mono.Services())
			started := time.Now()
			opps, err := manager.Scan(ctx, opts.userID)
			if err != nil {
				span.NoticeError(err)
				return fmt.Errorf("scan failed: %w", err)
			}
			span.SetAttributes(attribute.Int("safe", len(opps)))
			trail, err := manager.Trail(opts.userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d safe in %s\n\n", headerStyle.Render("Scan:"), len(opps),
				time.Since(started).Round(time.Millisecond))
			printOpportunities(out, opps)
			printVetoes(out, trail)

			if !execute || len(opps) == 0 {
				return nil
			}
			res := manager.Execute(ctx, opts.userID, opps[0].ID, m)
			span.AddEvent("execution", attribute.String("status", string(res.Status)))
			printResult(out, res)
			if !res.Succeeded() {
				err := fmt.Errorf("execution %s: %s", res.Status, res.Reason)
				span.NoticeError(err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "execute the best safe opportunity")
	cmd.Flags().StringVar(&mode, "mode", string(executionDomain.ModeSimulation), "execution mode: simulation or real")
	return cmd
}

func printOpportunities(w io.Writer, opps []*arbDomain.Opportunity) {
	if len(opps) == 0 {
		fmt.Fprintln(w, "no safe opportunities")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "ROUTE", "KIND", "NET USD", "NET %", "RISK", "EXPIRES")
	for _, opp := range opps {
		route := opp.Route.String()
		if opp.Demo {
			route += " [DEMO]"
		}
		t.Row(
			shortID(opp.ID),
			route,
			string(opp.Route.Kind),
			opp.Profit.NetProfit.StringFixed(2),
			opp.Profit.NetProfitPct.StringFixed(3),
			strconv.Itoa(opp.Risk.Total()),
			opp.ExpiresAt.Format(time.TimeOnly),
		)
	}
	fmt.Fprintln(w, t.String())
}

func printVetoes(w io.Writer, trail []sessionDomain.Entry) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("OPPORTUNITY", "GUARD", "CODE", "REASON")
	n := 0
	for _, e := range trail {
		if e.Kind != sessionDomain.EntryVeto {
			continue
		}
		t.Row(shortID(e.OpportunityID), e.Decision, string(e.Code), e.Reason)
		n++
	}
	if n == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s %d\n", headerStyle.Render("Vetoed:"), n)
	fmt.Fprintln(w, t.String())
}

func printResult(w io.Writer, res *executionDomain.Result) {
	fmt.Fprintf(w, "\n%s %s (%s)\n", headerStyle.Render("Execution:"), res.Status, res.Mode)
	if res.Succeeded() {
		fmt.Fprintf(w, "  pnl $%s  gas $%s\n", res.PnLUSD.StringFixed(2), res.GasUSD.StringFixed(2))
	} else {
		fmt.Fprintf(w, "  %s: %s\n", res.Code, res.Reason)
	}
	for _, tx := range res.Transactions {
		fmt.Fprintf(w, "  %s %s\n", tx.Kind, tx.Hash.Hex())
	}
	for _, ev := range res.Tripped {
		fmt.Fprintf(w, "  circuit breaker: %s (%s)\n", ev.Reason, ev.Severity)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
