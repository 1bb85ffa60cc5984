// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds session counters for display.
type Stats struct {
	Scans     int64
	Routes    int64
	Surfaced  int64
	Vetoed    int64
	Executed  int64
	Failed    int64
	Errors    int64
	Discarded map[string]int
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{stats: Stats{Discarded: map[string]int{}}}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	safeRate := float64(0)
	if s.stats.Surfaced > 0 {
		safeRate = float64(s.stats.Surfaced-s.stats.Vetoed) / float64(s.stats.Surfaced) * 100
	}

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Scans: %s  │  Routes: %s  │  Surfaced: %s  │  Vetoed: %s (%.1f%% safe)\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Scans)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Routes)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Surfaced)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Vetoed)),
			safeRate,
		) +
		fmt.Sprintf("Executed: %s  │  Failed: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Executed)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Failed)),
			errorsDisplay,
		)
}
