package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/logger"
)

const (
	tracerName = "risk"
	meterName  = "risk"
)

// TripHandler is told about every newly opened breaker event.
type TripHandler func(ctx context.Context, e domain.Event)

type ledgerMetrics struct {
	trades  metric.Int64Counter
	trips   metric.Int64Counter
	denials metric.Int64Counter
}

// Ledger keeps the per-user risk counters. Updates for one user are
// serialized by a per-user lock and committed in a single store
// transaction, so concurrent outcomes never lose an increment.
type Ledger struct {
	store  Store
	limits domain.Limits
	logger logger.LoggerInterface
	now    func() time.Time

	locks sync.Map // userID -> *sync.Mutex

	mu     sync.RWMutex
	onTrip []TripHandler

	tracer  trace.Tracer
	metrics *ledgerMetrics
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store Store, limits domain.Limits, log logger.LoggerInterface, opts ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "risk ledger needs a store")
	}
	l := &Ledger{
		store:  store,
		limits: limits,
		logger: log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.initMetrics(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	l.metrics = &ledgerMetrics{}

	l.metrics.trades, err = meter.Int64Counter("risk_trades_recorded_total",
		metric.WithDescription("Trade outcomes recorded by result"))
	if err != nil {
		return err
	}
	l.metrics.trips, err = meter.Int64Counter("risk_breaker_trips_total",
		metric.WithDescription("Circuit breaker events opened by reason"))
	if err != nil {
		return err
	}
	l.metrics.denials, err = meter.Int64Counter("risk_precheck_denials_total",
		metric.WithDescription("Trades refused before execution by code"))
	return err
}

// Limits returns the configured bounds.
func (l *Ledger) Limits() domain.Limits { return l.limits }

// OnTrip registers a handler for newly opened breaker events. Handlers run
// after the transaction commits.
func (l *Ledger) OnTrip(h TripHandler) {
	l.mu.Lock()
	l.onTrip = append(l.onTrip, h)
	l.mu.Unlock()
}

func (l *Ledger) lock(userID string) func() {
	v, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// load returns the user's row with the daily reset applied, creating it
// on first use.
func (l *Ledger) load(ctx context.Context, tx Tx, userID string, now time.Time) (*domain.Tracking, bool, error) {
	t, err := tx.Tracking(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return domain.NewTracking(userID, l.limits, now), true, nil
	}
	t.Limits = l.limits
	return t, t.ResetIfNewDay(now), nil
}

// RecordResult is the state after a recorded trade.
type RecordResult struct {
	Tracking domain.Tracking
	// Opened lists breaker events this trade opened.
	Opened []domain.Event
}

// RecordTrade applies one trade outcome and trips the breaker for every
// limit it crosses. While an event for the same reason is unresolved no
// duplicate is opened.
func (l *Ledger) RecordTrade(ctx context.Context, userID string, outcome domain.TradeOutcome) (*RecordResult, error) {
	ctx, span := l.tracer.Start(ctx, "risk.record_trade", trace.WithAttributes(
		attribute.String("user", userID),
		attribute.String("pnl_usd", outcome.PnLUSD.String()),
		attribute.Bool("failed", outcome.Failed),
	))
	defer span.End()

	unlock := l.lock(userID)
	defer unlock()

	if outcome.At.IsZero() {
		outcome.At = l.now()
	}
	var res RecordResult
	err := l.store.Update(ctx, func(tx Tx) error {
		t, _, err := l.load(ctx, tx, userID, outcome.At)
		if err != nil {
			return err
		}
		breaches := t.Apply(outcome)
		opened, err := l.trip(ctx, tx, t, breaches, outcome.At)
		if err != nil {
			return err
		}
		if len(breaches) > 0 && l.limits.AutoPause {
			t.TradingPaused = true
		}
		if err := tx.SaveTracking(ctx, t); err != nil {
			return err
		}
		res = RecordResult{Tracking: *t, Opened: opened}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := "success"
	if outcome.Failed {
		result = "failed"
	}
	l.metrics.trades.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	l.announce(ctx, res.Opened)
	return &res, nil
}

// trip opens an event per breach unless one with the same reason is
// still unresolved.
func (l *Ledger) trip(ctx context.Context, tx Tx, t *domain.Tracking, breaches []domain.Breach, now time.Time) ([]domain.Event, error) {
	var opened []domain.Event
	for _, b := range breaches {
		existing, err := tx.UnresolvedEvent(ctx, t.UserID, b.Reason)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		e := domain.NewEvent(t.UserID, b, now)
		if err := tx.InsertEvent(ctx, e); err != nil {
			return nil, err
		}
		opened = append(opened, *e)
	}
	return opened, nil
}

func (l *Ledger) announce(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	l.mu.RLock()
	handlers := l.onTrip
	l.mu.RUnlock()

	for _, e := range events {
		l.metrics.trips.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", e.Reason)))
		l.logger.Error(ctx, "circuit breaker tripped", "user", e.UserID, "reason", e.Reason,
			"trigger", e.TriggerValue.String(), "threshold", e.ThresholdValue.String(),
			"severity", string(e.Severity), "event", e.ID, "auto_pause", l.limits.AutoPause)
		for _, h := range handlers {
			h(ctx, e)
		}
	}
}

// PreCheck refuses a trade of positionUSD when trading is paused or a
// position or daily trade limit would be exceeded.
func (l *Ledger) PreCheck(ctx context.Context, userID string, positionUSD decimal.Decimal) error {
	t, err := l.Status(ctx, userID)
	if err != nil {
		return err
	}
	return l.admit(ctx, t, positionUSD, true)
}

// CheckPaused refuses any execution, simulated or real, while the user's
// breaker is tripped.
func (l *Ledger) CheckPaused(ctx context.Context, userID string) error {
	t, err := l.Status(ctx, userID)
	if err != nil {
		return err
	}
	return l.admit(ctx, t, decimal.Zero, false)
}

func (l *Ledger) admit(ctx context.Context, t *domain.Tracking, positionUSD decimal.Decimal, limits bool) error {
	var denial error
	switch {
	case t.TradingPaused:
		denial = apperror.New(apperror.CodeTradingPaused, apperror.WithContext(t.UserID), apperror.WithRetryable(false))
	case !limits:
	case l.limits.MaxPositionSizeUSD.IsPositive() && positionUSD.GreaterThan(l.limits.MaxPositionSizeUSD):
		denial = apperror.New(apperror.CodePositionTooLarge,
			apperror.WithContextf("$%s > $%s", positionUSD.StringFixed(2), l.limits.MaxPositionSizeUSD.StringFixed(2)),
			apperror.WithRetryable(false))
	case l.limits.MaxDailyTrades > 0 && t.DailyTradeCount >= l.limits.MaxDailyTrades:
		denial = apperror.New(apperror.CodeDailyTradeCapReached,
			apperror.WithContextf("%d trades today", t.DailyTradeCount), apperror.WithRetryable(false))
	}
	if denial != nil {
		l.metrics.denials.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(apperror.GetCode(denial)))))
	}
	return denial
}

// Status returns the user's current row, applying the daily reset lazily.
func (l *Ledger) Status(ctx context.Context, userID string) (*domain.Tracking, error) {
	unlock := l.lock(userID)
	defer unlock()

	var out domain.Tracking
	err := l.store.Update(ctx, func(tx Tx) error {
		t, changed, err := l.load(ctx, tx, userID, l.now())
		if err != nil {
			return err
		}
		if changed {
			if err := tx.SaveTracking(ctx, t); err != nil {
				return err
			}
		}
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetDaily zeroes the daily counters if the UTC day has rolled over. It
// reports whether a reset happened; calling it twice in a day is a no-op.
func (l *Ledger) ResetDaily(ctx context.Context, userID string) (bool, error) {
	unlock := l.lock(userID)
	defer unlock()

	var reset bool
	err := l.store.Update(ctx, func(tx Tx) error {
		t, changed, err := l.load(ctx, tx, userID, l.now())
		if err != nil {
			return err
		}
		reset = changed
		if !changed {
			return nil
		}
		return tx.SaveTracking(ctx, t)
	})
	if err == nil && reset {
		l.logger.Info(ctx, "daily risk counters reset", "user", userID)
	}
	return reset, err
}

// Events lists the user's breaker events, newest first.
func (l *Ledger) Events(ctx context.Context, userID string) ([]domain.Event, error) {
	return l.store.Events(ctx, userID)
}

// ResolveEvent marks an event resolved. Trading resumes once the user has
// no unresolved event left.
func (l *Ledger) ResolveEvent(ctx context.Context, userID, eventID, by, note string) (*domain.Event, error) {
	unlock := l.lock(userID)
	defer unlock()

	now := l.now()
	var (
		resolved *domain.Event
		resumed  bool
	)
	err := l.store.Update(ctx, func(tx Tx) error {
		e, err := tx.Event(ctx, userID, eventID)
		if err != nil {
			return err
		}
		if err := e.Resolve(by, note, now); err != nil {
			return err
		}
		if err := tx.ResolveEvent(ctx, e); err != nil {
			return err
		}
		resolved = e

		open, err := tx.CountUnresolved(ctx, userID)
		if err != nil {
			return err
		}
		t, _, err := l.load(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if open == 0 && t.TradingPaused {
			t.TradingPaused = false
			resumed = true
		}
		t.UpdatedAt = now
		return tx.SaveTracking(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info(ctx, "circuit breaker event resolved", "user", userID, "event", eventID,
		"by", by, "trading_resumed", resumed)
	return resolved, nil
}

// KillSwitch pauses the user immediately regardless of AutoPause and
// records an info event naming who pulled it.
func (l *Ledger) KillSwitch(ctx context.Context, userID, by string) (*domain.Event, error) {
	unlock := l.lock(userID)
	defer unlock()

	now := l.now()
	var opened []domain.Event
	err := l.store.Update(ctx, func(tx Tx) error {
		t, _, err := l.load(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		opened, err = l.trip(ctx, tx, t, []domain.Breach{{
			Reason:    domain.ReasonKillSwitch,
			Trigger:   decimal.NewFromInt(1),
			Threshold: decimal.NewFromInt(1),
			Severity:  domain.SeverityInfo,
		}}, now)
		if err != nil {
			return err
		}
		t.TradingPaused = true
		t.UpdatedAt = now
		return tx.SaveTracking(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	l.logger.Warn(ctx, "kill switch engaged", "user", userID, "by", by)
	l.announce(ctx, opened)
	if len(opened) == 0 {
		return nil, nil
	}
	return &opened[0], nil
}
