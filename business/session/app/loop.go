package app

import (
	"context"
	"time"

	executionDomain "github.com/fd1az/arbguard/business/execution/domain"
	"github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/internal/apperror"
)

// Start launches the user's periodic scan loop and the price history
// sweeper. The loop outlives ctx's deadline; only Stop ends it.
func (m *Manager) Start(ctx context.Context, userID string) error {
	s, err := m.open(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return apperror.New(apperror.CodeSessionRunning, apperror.WithContext(userID))
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	go s.anomaly.Start(loopCtx, m.cfg.SweepInterval)
	go func() {
		defer close(done)
		m.loop(loopCtx, s)
	}()

	m.metrics.running.Add(ctx, 1)
	m.audit(userID, func(e *domain.Entry) {
		e.Kind = domain.EntryControl
		e.Decision = "start"
	})
	m.logger.Info(ctx, "scan loop started", "user", userID, "interval", m.cfg.Interval.String(),
		"auto_execute", m.cfg.AutoExecute)
	return nil
}

// Stop ends the user's scan loop. No new cycle starts once Stop is called;
// an execution already in flight runs to its receipt before Stop returns.
// Stopping a stopped session is a no-op.
func (m *Manager) Stop(userID string) error {
	s, err := m.lookup(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	ctx := context.Background()
	m.metrics.running.Add(ctx, -1)
	m.audit(userID, func(e *domain.Entry) {
		e.Kind = domain.EntryControl
		e.Decision = "stop"
	})
	m.logger.Info(ctx, "scan loop stopped", "user", userID)
	return nil
}

// StopAll stops every running loop.
func (m *Manager) StopAll() {
	for _, userID := range m.Users() {
		_ = m.Stop(userID)
	}
}

// Close implements io.Closer for shutdown.
func (m *Manager) Close() error {
	m.StopAll()
	return nil
}

func (m *Manager) loop(ctx context.Context, s *session) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		m.cycle(ctx, s)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle scans once and, with auto-execution on, executes the best safe
// opportunity unless the user is paused.
func (m *Manager) cycle(ctx context.Context, s *session) {
	opps, err := m.Scan(ctx, s.userID)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error(ctx, "scan failed", "user", s.userID, "error", err)
		}
		return
	}
	if !m.cfg.AutoExecute || len(opps) == 0 || ctx.Err() != nil {
		return
	}

	status, err := m.deps.Ledger.Status(ctx, s.userID)
	if err != nil {
		m.logger.Error(ctx, "risk status unavailable, skipping execution", "user", s.userID, "error", err)
		return
	}
	if status.TradingPaused {
		m.logger.Warn(ctx, "trading paused, skipping execution", "user", s.userID,
			"opportunity", opps[0].ID)
		return
	}

	// A broadcast transaction cannot be recalled, so Stop must not cancel it.
	res := m.Execute(context.WithoutCancel(ctx), s.userID, opps[0].ID, m.cfg.AutoMode)
	if res.Status == executionDomain.StatusFailed || res.Status == executionDomain.StatusReverted {
		m.logger.Warn(ctx, "auto execution failed", "user", s.userID, "opportunity", opps[0].ID,
			"status", res.Status, "code", res.Code)
	}
}
