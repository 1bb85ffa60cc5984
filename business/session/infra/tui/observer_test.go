package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/pkg/ui"
)

type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) at(i int) tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[i]
}

type statusFunc func(ctx context.Context, userID string) (*riskDomain.Tracking, error)

func (f statusFunc) Status(ctx context.Context, userID string) (*riskDomain.Tracking, error) {
	return f(ctx, userID)
}

func TestObserver_RefreshesRiskAfterExecution(t *testing.T) {
	rec := &recorder{}
	o := NewObserver(rec.send, statusFunc(func(_ context.Context, userID string) (*riskDomain.Tracking, error) {
		return &riskDomain.Tracking{UserID: userID, DailyTradeCount: 1}, nil
	}))

	o.Observe(domain.NewEntry("alice", domain.EntryExecution, "confirmed", time.Now()))

	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, time.Millisecond)
	audit, ok := rec.at(0).(ui.AuditMsg)
	require.True(t, ok)
	assert.Equal(t, "confirmed", audit.Entry.Decision)
	risk, ok := rec.at(1).(ui.RiskMsg)
	require.True(t, ok)
	assert.Equal(t, "alice", risk.Tracking.UserID)
}

func TestObserver_VetoDoesNotReadLedger(t *testing.T) {
	rec := &recorder{}
	o := NewObserver(rec.send, statusFunc(func(context.Context, string) (*riskDomain.Tracking, error) {
		t.Error("ledger read for a veto")
		return nil, nil
	}))

	o.Observe(domain.NewEntry("alice", domain.EntryVeto, "spread", time.Now()))
	assert.Equal(t, 1, rec.len())
}

func TestObserver_ReportsLedgerErrors(t *testing.T) {
	rec := &recorder{}
	o := NewObserver(rec.send, statusFunc(func(context.Context, string) (*riskDomain.Tracking, error) {
		return nil, errors.New("db closed")
	}))

	o.Observe(domain.NewEntry("alice", domain.EntryBreaker, "kill_switch", time.Now()))
	require.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, time.Millisecond)
	_, ok := rec.at(1).(ui.ErrorMsg)
	assert.True(t, ok)
}
