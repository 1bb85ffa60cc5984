// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// RiskRow holds the ledger counters for display. Values are computed by
// the ledger; the component only formats them.
type RiskRow struct {
	UserID              string
	DailyProfitUSD      decimal.Decimal
	DailyLossUSD        decimal.Decimal
	DailyGasUSD         decimal.Decimal
	DailyLossLimitUSD   decimal.Decimal
	Trades              int
	MaxTrades           int
	ConsecutiveFailures int
	MaxFailures         int
	Paused              bool
}

// RiskComponent renders the risk ledger panel.
type RiskComponent struct {
	row     *RiskRow
	breaker []string
}

func NewRiskComponent() *RiskComponent {
	return &RiskComponent{}
}

// Update replaces the counters.
func (r *RiskComponent) Update(row RiskRow) {
	r.row = &row
}

// Paused reports whether the last counters had trading paused.
func (r *RiskComponent) Paused() bool {
	return r.row != nil && r.row.Paused
}

// Trip records a breaker line, keeping the last three.
func (r *RiskComponent) Trip(line string) {
	r.breaker = append(r.breaker, line)
	if len(r.breaker) > 3 {
		r.breaker = r.breaker[len(r.breaker)-3:]
	}
}

// View renders the risk component.
func (r *RiskComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	pausedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))

	if r.row == nil {
		return headerStyle.Render("RISK") + "\n\n" + dimStyle.Render("  No executions yet...")
	}
	row := r.row

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("RISK (%s)", row.UserID)))
	sb.WriteString("\n\n")
	if row.Paused {
		sb.WriteString(pausedStyle.Render("  ⏸ TRADING PAUSED"))
		sb.WriteString("\n\n")
	}

	net := row.DailyProfitUSD.Sub(row.DailyLossUSD)
	netStyle := positiveStyle
	if net.IsNegative() {
		netStyle = negativeStyle
	}
	sb.WriteString(fmt.Sprintf("  Daily net:    %s\n", netStyle.Render("$"+net.StringFixed(2))))
	sb.WriteString(fmt.Sprintf("  Daily loss:   %s %s\n", negativeStyle.Render("$"+row.DailyLossUSD.StringFixed(2)),
		dimStyle.Render(limit(row.DailyLossLimitUSD.StringFixed(2), row.DailyLossLimitUSD.IsZero()))))
	sb.WriteString(fmt.Sprintf("  Gas spent:    %s\n", dimStyle.Render("$"+row.DailyGasUSD.StringFixed(2))))
	sb.WriteString(fmt.Sprintf("  Trades:       %d %s\n", row.Trades,
		dimStyle.Render(limit(fmt.Sprint(row.MaxTrades), row.MaxTrades == 0))))
	sb.WriteString(fmt.Sprintf("  Failures:     %d %s\n", row.ConsecutiveFailures,
		dimStyle.Render(limit(fmt.Sprint(row.MaxFailures), row.MaxFailures == 0))))

	if len(r.breaker) > 0 {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 40)))
		sb.WriteString("\n")
		for _, line := range r.breaker {
			sb.WriteString(negativeStyle.Render("  ⚡ " + line))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func limit(v string, disabled bool) string {
	if disabled {
		return "(no limit)"
	}
	return "/ " + v
}
