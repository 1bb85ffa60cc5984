package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/arbguard/business/arbitrage/domain"
	sessionDomain "github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var startupOrder = []string{"config", "ethereum", "reference", "session"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	keys          KeyMap
	opportunities *components.OpportunitiesComponent
	risk          *components.RiskComponent
	stats         *components.StatsComponent
	status        *components.StatusComponent

	phase        Phase
	welcomeStart time.Time

	ready        bool
	quitting     bool
	width        int
	height       int
	currentBlock uint64
	gasPrice     float64
	lastUpdate   time.Time
	lastScanTime time.Time
	errors       []ErrorEntry // last 3
	logs         []string
	feed         []string

	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		keys:          DefaultKeyMap(),
		opportunities: components.NewOpportunitiesComponent(50),
		risk:          components.NewRiskComponent(),
		stats:         components.NewStatsComponent(),
		status:        components.NewStatusComponent(),
		phase:         PhaseWelcome,
		welcomeStart:  now,
		logs:          make([]string, 0, 5),
		errors:        make([]ErrorEntry, 0, 3),
		feed:          make([]string, 0, 8),
		startupSteps: map[string]*StartupStep{
			"config":    {Name: "Loading configuration", Status: "pending"},
			"ethereum":  {Name: "Connecting to Ethereum", Status: "pending"},
			"reference": {Name: "Loading reference prices", Status: "pending"},
			"session":   {Name: "Opening session", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m *Model) leaveWelcome() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Callbacks run off the update loop; Send from inside Update deadlocks.
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.leaveWelcome()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.opportunities.Clear()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Up):
			m.opportunities.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.opportunities.ScrollDown()
		case key.Matches(msg, m.keys.KillSwitch):
			if OnKillSwitch != nil {
				go OnKillSwitch()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.leaveWelcome()
		}
		return m, tickCmd()

	case OpportunityMsg:
		if opp := msg.Opportunity; opp != nil {
			m.opportunities.Add(opportunityRow(opp))
			m.lastUpdate = time.Now()
		}

	case ScanMsg:
		s := m.stats.Stats()
		s.Scans++
		s.Routes += int64(msg.Routes)
		s.Surfaced += int64(msg.Opportunities)
		if s.Discarded == nil {
			s.Discarded = make(map[string]int)
		}
		for reason, n := range msg.Discarded {
			s.Discarded[reason] += n
		}
		m.stats.Update(s)
		m.feed = addActivity(m.feed, fmt.Sprintf("Scan: %d routes, %d surfaced in %s",
			msg.Routes, msg.Opportunities, msg.Duration.Round(time.Millisecond)))
		m.lastScanTime = time.Now()
		m.lastUpdate = m.lastScanTime
		m.phase = PhaseDashboard

	case AuditMsg:
		m.applyAudit(msg.Entry)
		m.lastUpdate = time.Now()

	case RiskMsg:
		if t := msg.Tracking; t != nil {
			m.risk.Update(components.RiskRow{
				UserID:              t.UserID,
				DailyProfitUSD:      t.DailyProfitUSD,
				DailyLossUSD:        t.DailyLossUSD,
				DailyGasUSD:         t.DailyGasUsedUSD,
				DailyLossLimitUSD:   t.Limits.DailyLossLimitUSD,
				Trades:              t.DailyTradeCount,
				MaxTrades:           t.Limits.MaxDailyTrades,
				ConsecutiveFailures: t.ConsecutiveFailures,
				MaxFailures:         t.Limits.MaxConsecutiveFailures,
				Paused:              t.TradingPaused,
			})
		}

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastUpdate: time.Now(),
		})
		if step, ok := m.startupSteps[strings.ToLower(msg.Name)]; ok {
			step.Status = "connecting"
			if msg.Connected {
				step.Status = "connected"
			}
		}
		m.lastUpdate = time.Now()

	case BlockMsg:
		m.currentBlock = msg.Number
		m.lastUpdate = time.Now()

	case GasPriceMsg:
		m.gasPrice = msg.GweiPrice
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}
		s := m.stats.Stats()
		s.Errors++
		m.stats.Update(s)

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		m.startupComplete = true
		for _, step := range m.startupSteps {
			if step.Status != "connected" && step.Status != "done" {
				m.startupComplete = false
				break
			}
		}
		if m.startupComplete && m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}
	}

	return m, nil
}

// applyAudit folds a session decision into the dashboard.
func (m *Model) applyAudit(e sessionDomain.Entry) {
	s := m.stats.Stats()
	switch e.Kind {
	case sessionDomain.EntryVeto:
		s.Vetoed++
		m.opportunities.SetState(e.OpportunityID, components.StateVetoed, e.Decision)
		m.feed = addActivity(m.feed, fmt.Sprintf("Veto %s: %s", e.Decision, e.Reason))
	case sessionDomain.EntryExecution:
		state := components.StateExecuted
		switch e.Decision {
		case "simulated", "confirmed":
			s.Executed++
		default:
			s.Failed++
			state = components.StateFailed
		}
		m.opportunities.SetState(e.OpportunityID, state, e.Decision)
		line := "Execution " + e.Decision
		if e.Reason != "" {
			line += ": " + e.Reason
		}
		m.feed = addActivity(m.feed, line)
	case sessionDomain.EntryBreaker:
		m.risk.Trip(fmt.Sprintf("%s %s", e.At.Format("15:04:05"), e.Decision))
		m.feed = addActivity(m.feed, "Circuit breaker: "+e.Decision)
	case sessionDomain.EntryControl:
		m.feed = addActivity(m.feed, "Control: "+e.Decision)
	}
	m.stats.Update(s)
}

func opportunityRow(opp *domain.Opportunity) components.OpportunityRow {
	return components.OpportunityRow{
		ID:        opp.ID,
		Time:      opp.CreatedAt.Format("15:04:05"),
		Route:     opp.Route.String(),
		Kind:      string(opp.Route.Kind),
		NetProfit: opp.NetProfit(),
		Risk:      opp.Risk.Total(),
		Demo:      opp.Demo,
	}
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 8).
func addActivity(feed []string, message string) []string {
	feed = append(feed, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message))
	if len(feed) > 8 {
		feed = feed[len(feed)-8:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(" arbguard "))
	if m.risk.Paused() {
		b.WriteString(" ")
		b.WriteString(PausedBanner.Render("TRADING PAUSED"))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.risk.View() + "\n\n" + m.renderActivityFeed()
	rightCol := m.opportunities.View()

	if m.width > 100 {
		left := BoxStyle.Width(m.width/3 - 2).Render(leftCol)
		right := BoxStyle.Width(2*m.width/3 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(ErrorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(VetoStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.keys.HelpLine()))
	return b.String()
}

func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("DECISIONS"))
	sb.WriteString("\n\n")
	if len(m.feed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for the first scan..."))
		return sb.String()
	}
	for _, line := range m.feed {
		style := MutedValue
		switch {
		case strings.Contains(line, "Veto"), strings.Contains(line, "Circuit breaker"):
			style = VetoStyle
		case strings.Contains(line, "Execution"):
			style = ExecutedStyle
		}
		sb.WriteString(style.Render("  " + line))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	dots := strings.Repeat(".", int(time.Since(m.welcomeStart).Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	logo := `
     █████╗ ██████╗ ██████╗  ██████╗ ██╗   ██╗ █████╗ ██████╗ ██████╗
    ██╔══██╗██╔══██╗██╔══██╗██╔════╝ ██║   ██║██╔══██╗██╔══██╗██╔══██╗
    ███████║██████╔╝██████╔╝██║  ███╗██║   ██║███████║██████╔╝██║  ██║
    ██╔══██║██╔══██╗██╔══██╗██║   ██║██║   ██║██╔══██║██╔══██╗██║  ██║
    ██║  ██║██║  ██║██████╔╝╚██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝
    ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝  ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("          discovery • safety gateway • risk ledger"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                      Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("                Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  arbguard"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}
		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", style.Render(icon), MutedValue.Render(step.Name), style.Render(statusText)))
	}

	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.startupTime).Round(time.Second))))
	sb.WriteString("\n")
	for _, l := range m.logs {
		sb.WriteString(MutedValue.Render("  " + l))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if time.Since(m.lastScanTime) < 500*time.Millisecond {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, StatusConnected.Render(spinners[idx]+" Scanning"))
	}
	if m.currentBlock > 0 {
		parts = append(parts, fmt.Sprintf("Block: #%d", m.currentBlock))
	}
	if m.gasPrice > 0 {
		parts = append(parts, fmt.Sprintf("Gas: %.1f gwei", m.gasPrice))
	}
	parts = append(parts, m.status.View())
	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}
	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called once the welcome screen completes.
var OnStartModules func()

// OnKillSwitch is called when the operator presses the kill switch key.
var OnKillSwitch func()

// NewProgram creates the dashboard program and makes it the target of Send.
func NewProgram() *tea.Program {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	return Program
}

// Send sends a message to the running program. It is a no-op before
// NewProgram.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
