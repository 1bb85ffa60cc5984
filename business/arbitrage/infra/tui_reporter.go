package infra

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/arbguard/business/arbitrage/app"
	"github.com/fd1az/arbguard/business/arbitrage/domain"
	"github.com/fd1az/arbguard/pkg/ui"
)

var _ app.Reporter = (*TUIReporter)(nil)

// TUIReporter implements Reporter for the Bubble Tea dashboard.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a reporter delivering messages through send,
// usually ui.Send.
func NewTUIReporter(send func(tea.Msg)) *TUIReporter {
	return &TUIReporter{send: send}
}

// Start is a no-op; the program is started by the caller.
func (r *TUIReporter) Start(ctx context.Context) error {
	return nil
}

// Report sends an arbitrage opportunity to the TUI.
func (r *TUIReporter) Report(opp *domain.Opportunity) {
	r.send(ui.OpportunityMsg{Opportunity: opp})
}

// ReportScan sends the scan summary to the TUI.
func (r *TUIReporter) ReportScan(res *domain.ScanResult) {
	r.send(ui.ScanMsg{
		Routes:        res.Evaluated,
		Opportunities: len(res.Opportunities),
		Discarded:     res.Discarded,
		Duration:      res.Duration,
	})
}

// UpdateConnectionStatus sends connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

func (r *TUIReporter) Stop() error {
	return nil
}
