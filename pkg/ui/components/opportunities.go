// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Opportunity states shown in the status column.
const (
	StateSurfaced = "surfaced"
	StateVetoed   = "vetoed"
	StateExecuted = "executed"
	StateFailed   = "failed"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	ID        string
	Time      string
	Route     string
	Kind      string
	NetProfit decimal.Decimal
	Risk      int
	Demo      bool
	State     string
	// Detail is the veto guard or the execution status.
	Detail string
}

// OpportunitiesComponent renders the opportunities list.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
	visible int
	offset  int
}

// NewOpportunitiesComponent creates a new opportunities component keeping
// maxRows rows, newest first.
func NewOpportunitiesComponent(maxRows int) *OpportunitiesComponent {
	return &OpportunitiesComponent{
		rows:    make([]OpportunityRow, 0),
		maxRows: maxRows,
		visible: 10,
	}
}

// Add adds a new opportunity to the list.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	if row.State == "" {
		row.State = StateSurfaced
	}
	o.rows = append([]OpportunityRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
}

// SetState updates the row of an opportunity. Unknown ids are ignored.
func (o *OpportunitiesComponent) SetState(id, state, detail string) bool {
	for i := range o.rows {
		if o.rows[i].ID == id {
			o.rows[i].State = state
			o.rows[i].Detail = detail
			return true
		}
	}
	return false
}

// Rows returns the rows, newest first.
func (o *OpportunitiesComponent) Rows() []OpportunityRow {
	return o.rows
}

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = make([]OpportunityRow, 0)
	o.offset = 0
}

func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

func (o *OpportunitiesComponent) ScrollDown() {
	if o.offset < len(o.rows)-o.visible {
		o.offset++
	}
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	if len(o.rows) == 0 {
		return "No opportunities surfaced yet..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	vetoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	demoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (%d)", len(o.rows))))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %-8s  %-32s  %10s  %4s  %s\n", "Time", "Route", "Net", "Risk", "Status"))
	sb.WriteString(mutedStyle.Render("  " + strings.Repeat("─", 72)))
	sb.WriteString("\n")

	end := min(o.offset+o.visible, len(o.rows))
	for _, row := range o.rows[o.offset:end] {
		status := row.State
		if row.Detail != "" {
			status += " (" + row.Detail + ")"
		}
		style := mutedStyle
		switch row.State {
		case StateVetoed, StateFailed:
			style = vetoStyle
		case StateExecuted:
			style = profitStyle
		}
		route := truncate(row.Route, 32)
		if row.Demo {
			route = demoStyle.Render(fmt.Sprintf("%-32s", truncate("DEMO "+row.Route, 32)))
		} else {
			route = fmt.Sprintf("%-32s", route)
		}
		sb.WriteString(fmt.Sprintf("  %-8s  %s  %10s  %4d  %s\n",
			row.Time,
			route,
			"$"+row.NetProfit.StringFixed(2),
			row.Risk,
			style.Render(status),
		))
	}
	if len(o.rows) > o.visible {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", o.offset+1, end, len(o.rows))))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
