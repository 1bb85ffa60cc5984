// Package ui provides the Bubble Tea dashboard for arbguard.
package ui

import (
	"time"

	"github.com/fd1az/arbguard/business/arbitrage/domain"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	sessionDomain "github.com/fd1az/arbguard/business/session/domain"
)

// Message types for TUI updates

// OpportunityMsg is sent for every opportunity a scan surfaces, before the
// safety gateway has seen it.
type OpportunityMsg struct {
	Opportunity *domain.Opportunity
}

// ScanMsg summarizes one discovery and evaluation pass.
type ScanMsg struct {
	Routes        int
	Opportunities int
	Discarded     map[string]int
	Duration      time.Duration
}

// AuditMsg carries one session audit entry: a veto, an execution, a
// breaker trip or a control action.
type AuditMsg struct {
	Entry sessionDomain.Entry
}

// RiskMsg is sent with the user's risk counters after each execution.
type RiskMsg struct {
	Tracking *riskDomain.Tracking
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// BlockMsg is sent when a new block is received.
type BlockMsg struct {
	Number    uint64
	Timestamp time.Time
}

// GasPriceMsg is sent when gas price is updated.
type GasPriceMsg struct {
	GweiPrice float64
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// LogMsg is sent by LogWriter for every warning or error logged.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "ethereum", "reference", "session"
	Status  string // "connecting", "connected", "failed"
	Message string
}
