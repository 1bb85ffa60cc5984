package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	riskApp "github.com/fd1az/arbguard/business/risk/app"
	riskDI "github.com/fd1az/arbguard/business/risk/di"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
)

func newRiskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Inspect and control the user's risk ledger",
	}
	cmd.AddCommand(
		newRiskStatusCmd(opts),
		newRiskEventsCmd(opts),
		newRiskResolveCmd(opts),
		newRiskKillCmd(opts),
	)
	return cmd
}

// withLedger boots the risk module alone and hands its ledger to fn.
func withLedger(ctx context.Context, opts *options, fn func(*riskApp.Ledger) error) error {
	app, err := bootAndStart(ctx, opts, bootOptions{quiet: true, modules: riskModules()})
	if err != nil {
		return err
	}
	defer app.Close()

	_, span := tracer.Start(ctx, "cli.risk", attribute.String("user", opts.userID))
	defer span.End()
	err = fn(riskDI.GetLedger(app.mono.Services()))
	span.NoticeError(err)
	return err
}

func newRiskStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's counters and limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), opts, func(l *riskApp.Ledger) error {
				t, err := l.Status(cmd.Context(), opts.userID)
				if err != nil {
					return err
				}
				printTracking(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
}

func newRiskEventsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List circuit breaker events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), opts, func(l *riskApp.Ledger) error {
				events, err := l.Events(cmd.Context(), opts.userID)
				if err != nil {
					return err
				}
				printEvents(cmd.OutOrStdout(), events)
				return nil
			})
		},
	}
}

func newRiskResolveCmd(opts *options) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "resolve <event-id>",
		Short: "Resolve a circuit breaker event",
		Long:  "Resolves one event. Trading resumes once no unresolved event remains.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), opts, func(l *riskApp.Ledger) error {
				ev, err := l.ResolveEvent(cmd.Context(), opts.userID, args[0], opts.userID, note)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "resolved %s (%s)\n", ev.ID, ev.Reason)
				t, err := l.Status(cmd.Context(), opts.userID)
				if err != nil {
					return err
				}
				if t.TradingPaused {
					fmt.Fprintln(cmd.OutOrStdout(), "trading remains paused: unresolved events left")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "resolution note")
	return cmd
}

func newRiskKillCmd(opts *options) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Pause trading immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), opts, func(l *riskApp.Ledger) error {
				ev, err := l.KillSwitch(cmd.Context(), opts.userID, by)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "trading paused for %s (event %s)\n", opts.userID, ev.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "operator", "who engaged the kill switch")
	return cmd
}

func printTracking(w io.Writer, t *riskDomain.Tracking) {
	state := "active"
	if t.TradingPaused {
		state = "PAUSED"
	}
	fmt.Fprintf(w, "%s %s  trading %s  period %s\n\n", headerStyle.Render("User:"), t.UserID, state,
		t.PeriodStart.Format(time.DateOnly))

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("COUNTER", "VALUE", "LIMIT").
		Row("daily loss usd", t.DailyLossUSD.StringFixed(2), t.Limits.DailyLossLimitUSD.StringFixed(2)).
		Row("daily profit usd", t.DailyProfitUSD.StringFixed(2), "").
		Row("daily gas usd", t.DailyGasUsedUSD.StringFixed(2), "").
		Row("daily trades", strconv.Itoa(t.DailyTradeCount), strconv.Itoa(t.Limits.MaxDailyTrades)).
		Row("consecutive failures", strconv.Itoa(t.ConsecutiveFailures), strconv.Itoa(t.Limits.MaxConsecutiveFailures)).
		Row("max position usd", "", t.Limits.MaxPositionSizeUSD.StringFixed(2)).
		Row("max single loss usd", "", t.Limits.MaxSingleLossUSD.StringFixed(2))
	fmt.Fprintln(w, tbl.String())
}

func printEvents(w io.Writer, events []riskDomain.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no circuit breaker events")
		return
	}
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "CREATED", "SEVERITY", "REASON", "TRIGGER", "THRESHOLD", "RESOLVED")
	for _, ev := range events {
		resolved := "no"
		if ev.Resolved {
			resolved = "by " + ev.ResolvedBy
		}
		tbl.Row(ev.ID, ev.CreatedAt.Format(time.DateTime), string(ev.Severity), ev.Reason,
			ev.TriggerValue.String(), ev.ThresholdValue.String(), resolved)
	}
	fmt.Fprintln(w, tbl.String())
}
