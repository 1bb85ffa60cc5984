// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/fd1az/arbguard/business/arbitrage/app"
	"github.com/fd1az/arbguard/business/arbitrage/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter writing to w, or stdout when nil.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleReporter{out: w}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "arbguard started")
	fmt.Fprintln(r.out, "================")
	return nil
}

const rule = "--------------------------------------------------------------------------------"

// Report outputs an arbitrage opportunity to the console.
func (r *ConsoleReporter) Report(opp *domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY")
	if opp.Demo {
		fmt.Fprintln(r.out, "*** DEMO: built from synthetic quotes, not executable for real ***")
	}
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "ID:             %s\n", opp.ID)
	fmt.Fprintf(r.out, "Created:        %s (expires %s)\n", opp.CreatedAt.Format(time.RFC3339), opp.ExpiresAt.Format("15:04:05"))
	fmt.Fprintf(r.out, "Kind:           %s (%d hops)\n", opp.Route.Kind, opp.Route.Hops())
	fmt.Fprintf(r.out, "Path:           %s\n", opp.Route.Path())
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "EXECUTION")
	for _, step := range opp.ExecutionSteps() {
		fmt.Fprintf(r.out, "  %d. %s\n", step.Number, step.Description)
	}
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "PROFIT")
	if opp.GasCost != nil {
		fmt.Fprintf(r.out, "  Gas:            %d gas, %s native ($%s)\n", opp.GasCost.GasLimit, opp.GasCost.Native.StringFixed(6), opp.GasCost.USD.StringFixed(2))
	}
	if opp.Profit != nil {
		fmt.Fprintf(r.out, "  In / Out:       $%s -> $%s\n", opp.Profit.StartValue.StringFixed(2), opp.Profit.FinalValue.StringFixed(2))
		fmt.Fprintf(r.out, "  Gross:          $%s\n", opp.Profit.GrossProfit.StringFixed(2))
		fmt.Fprintf(r.out, "  Net:            $%s (%s%%)\n", opp.Profit.NetProfit.StringFixed(2), opp.Profit.NetProfitPct.StringFixed(3))
	}
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "RISK %d/%d      max leg spread %s%%\n", opp.Risk.Total(), domain.MaxRiskScore, opp.MaxSpreadPct.StringFixed(2))
	for _, f := range opp.RiskFactors() {
		fmt.Fprintf(r.out, "  [%s] %s\n", f.Severity, f.Description)
	}
	fmt.Fprintln(r.out, "================================================================================")
}

// ReportScan prints a one-line summary of a scan.
func (r *ConsoleReporter) ReportScan(res *domain.ScanResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "[%s] scanned %d routes in %s: %d opportunities",
		res.StartedAt.Format("15:04:05"), res.Evaluated, res.Duration.Round(time.Millisecond), len(res.Opportunities))
	for _, reason := range slices.Sorted(maps.Keys(res.Discarded)) {
		fmt.Fprintf(r.out, ", %s=%d", reason, res.Discarded[reason])
	}
	fmt.Fprintln(r.out)
}

// UpdateConnectionStatus outputs connection status changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency)
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "arbguard stopped")
	return nil
}
