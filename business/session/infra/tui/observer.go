// Package tui forwards session decisions to the dashboard.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/pkg/ui"
)

// StatusReader reads a user's risk counters.
type StatusReader interface {
	Status(ctx context.Context, userID string) (*riskDomain.Tracking, error)
}

// Observer sends every audit entry to the dashboard and refreshes the
// risk panel after decisions that move the ledger.
type Observer struct {
	send   func(tea.Msg)
	ledger StatusReader
}

// NewObserver creates an observer delivering through send, usually ui.Send.
func NewObserver(send func(tea.Msg), ledger StatusReader) *Observer {
	return &Observer{send: send, ledger: ledger}
}

// Observe never blocks the session; the ledger read runs on its own goroutine.
func (o *Observer) Observe(e domain.Entry) {
	o.send(ui.AuditMsg{Entry: e})
	switch e.Kind {
	case domain.EntryExecution, domain.EntryBreaker, domain.EntryControl:
	default:
		return
	}
	go func() {
		t, err := o.ledger.Status(context.Background(), e.UserID)
		if err != nil {
			o.send(ui.ErrorMsg{Error: err})
			return
		}
		o.send(ui.RiskMsg{Tracking: t})
	}()
}
