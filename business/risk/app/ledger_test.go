package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbguard/business/risk/app"
	"github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/business/risk/infra/sqlite"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/logger"
)

func usd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newLedger(t *testing.T, limits domain.Limits) (*app.Ledger, *clock) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l, err := app.NewLedger(store, limits, logger.NewNop(), app.WithClock(c.Now))
	require.NoError(t, err)
	return l, c
}

func defaultLimits() domain.Limits {
	return domain.Limits{
		DailyLossLimitUSD:      usd("500"),
		MaxPositionSizeUSD:     usd("10000"),
		MaxSingleLossUSD:       usd("200"),
		MaxConsecutiveFailures: 3,
		MaxDailyTrades:         100,
		AutoPause:              true,
	}
}

func loss(amount string, at time.Time) domain.TradeOutcome {
	return domain.TradeOutcome{PnLUSD: usd(amount).Neg(), At: at}
}

func TestLedger_DailyLossTripsOnceAndPauses(t *testing.T) {
	ctx := context.Background()
	limits := defaultLimits()
	limits.MaxSingleLossUSD = usd("1000")
	l, c := newLedger(t, limits)

	var tripped []domain.Event
	l.OnTrip(func(_ context.Context, e domain.Event) { tripped = append(tripped, e) })

	res, err := l.RecordTrade(ctx, "alice", loss("480", c.Now()))
	require.NoError(t, err)
	assert.Empty(t, res.Opened)
	assert.False(t, res.Tracking.TradingPaused)

	res, err = l.RecordTrade(ctx, "alice", loss("30", c.Now()))
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, domain.ReasonDailyLoss, res.Opened[0].Reason)
	assert.Equal(t, domain.SeverityCritical, res.Opened[0].Severity)
	assert.True(t, res.Opened[0].TriggerValue.Equal(usd("510")))
	assert.True(t, res.Tracking.TradingPaused)
	require.Len(t, tripped, 1)

	err = l.PreCheck(ctx, "alice", usd("100"))
	assert.True(t, apperror.HasCode(err, apperror.CodeTradingPaused), "got %v", err)

	// Still above the limit while the first event is open.
	res, err = l.RecordTrade(ctx, "alice", loss("10", c.Now()))
	require.NoError(t, err)
	assert.Empty(t, res.Opened)

	events, err := l.Events(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Len(t, tripped, 1)
}

func TestLedger_AutoPauseOff(t *testing.T) {
	ctx := context.Background()
	limits := defaultLimits()
	limits.AutoPause = false
	l, c := newLedger(t, limits)

	res, err := l.RecordTrade(ctx, "alice", loss("250", c.Now()))
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, domain.ReasonSingleLoss, res.Opened[0].Reason)
	assert.False(t, res.Tracking.TradingPaused)
	assert.NoError(t, l.PreCheck(ctx, "alice", usd("100")))
}

func TestLedger_ResolveClearsPause(t *testing.T) {
	ctx := context.Background()
	l, c := newLedger(t, defaultLimits())

	// 250 crosses the single-loss limit only.
	res, err := l.RecordTrade(ctx, "alice", loss("250", c.Now()))
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)
	kill, err := l.KillSwitch(ctx, "alice", "ops")
	require.NoError(t, err)
	require.NotNil(t, kill)
	assert.Equal(t, domain.SeverityInfo, kill.Severity)

	_, err = l.ResolveEvent(ctx, "alice", res.Opened[0].ID, "ops", "reviewed")
	require.NoError(t, err)
	status, err := l.Status(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, status.TradingPaused, "kill switch event still open")

	resolved, err := l.ResolveEvent(ctx, "alice", kill.ID, "ops", "resume")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "resume", resolved.Note)

	status, err = l.Status(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, status.TradingPaused)
	assert.NoError(t, l.PreCheck(ctx, "alice", usd("100")))

	_, err = l.ResolveEvent(ctx, "alice", kill.ID, "ops", "again")
	assert.True(t, apperror.HasCode(err, apperror.CodeEventAlreadyResolved), "got %v", err)
	_, err = l.ResolveEvent(ctx, "alice", "missing", "ops", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeEventNotFound), "got %v", err)
}

func TestLedger_KillSwitchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, defaultLimits())

	first, err := l.KillSwitch(ctx, "alice", "ops")
	require.NoError(t, err)
	require.NotNil(t, first)
	second, err := l.KillSwitch(ctx, "alice", "ops")
	require.NoError(t, err)
	assert.Nil(t, second)

	events, err := l.Events(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestLedger_ResetDaily(t *testing.T) {
	ctx := context.Background()
	l, c := newLedger(t, defaultLimits())

	_, err := l.RecordTrade(ctx, "alice", domain.TradeOutcome{PnLUSD: usd("-40"), Failed: true, At: c.Now()})
	require.NoError(t, err)

	reset, err := l.ResetDaily(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, reset, "same day")

	c.Set(c.Now().Add(24 * time.Hour))
	reset, err = l.ResetDaily(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, reset)
	reset, err = l.ResetDaily(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, reset, "second reset on the same day")

	status, err := l.Status(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, status.DailyLossUSD.IsZero())
	assert.Zero(t, status.DailyTradeCount)
	assert.Equal(t, 1, status.ConsecutiveFailures)
}

func TestLedger_LazyResetOnStatus(t *testing.T) {
	ctx := context.Background()
	l, c := newLedger(t, defaultLimits())

	_, err := l.RecordTrade(ctx, "alice", loss("40", c.Now()))
	require.NoError(t, err)
	c.Set(c.Now().Add(36 * time.Hour))

	status, err := l.Status(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, status.DailyLossUSD.IsZero())
	assert.True(t, status.PeriodStart.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)), "period start %s", status.PeriodStart)
}

func TestLedger_PreCheckLimits(t *testing.T) {
	ctx := context.Background()
	limits := defaultLimits()
	limits.MaxDailyTrades = 2
	l, c := newLedger(t, limits)

	err := l.PreCheck(ctx, "alice", usd("10001"))
	assert.True(t, apperror.HasCode(err, apperror.CodePositionTooLarge), "got %v", err)
	assert.NoError(t, l.PreCheck(ctx, "alice", usd("10000")))

	for i := 0; i < 2; i++ {
		_, err := l.RecordTrade(ctx, "alice", domain.TradeOutcome{PnLUSD: usd("1"), At: c.Now()})
		require.NoError(t, err)
	}
	err = l.PreCheck(ctx, "alice", usd("10"))
	assert.True(t, apperror.HasCode(err, apperror.CodeDailyTradeCapReached), "got %v", err)

	// Other users are unaffected.
	assert.NoError(t, l.PreCheck(ctx, "bob", usd("10")))
}

func TestLedger_CheckPausedIgnoresTradeLimits(t *testing.T) {
	ctx := context.Background()
	limits := defaultLimits()
	limits.MaxDailyTrades = 1
	l, c := newLedger(t, limits)

	_, err := l.RecordTrade(ctx, "alice", domain.TradeOutcome{PnLUSD: usd("1"), At: c.Now()})
	require.NoError(t, err)
	assert.NoError(t, l.CheckPaused(ctx, "alice"), "trade cap does not block simulation")

	kill, err := l.KillSwitch(ctx, "alice", "ops")
	require.NoError(t, err)
	err = l.CheckPaused(ctx, "alice")
	assert.True(t, apperror.HasCode(err, apperror.CodeTradingPaused), "got %v", err)
	assert.NoError(t, l.CheckPaused(ctx, "bob"))

	_, err = l.ResolveEvent(ctx, "alice", kill.ID, "ops", "resume")
	require.NoError(t, err)
	assert.NoError(t, l.CheckPaused(ctx, "alice"))
}

func TestLedger_ConcurrentOutcomesCommute(t *testing.T) {
	ctx := context.Background()
	limits := defaultLimits()
	limits.DailyLossLimitUSD = usd("100000")
	limits.MaxDailyTrades = 0
	l, c := newLedger(t, limits)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pnl := usd("-1.5")
			if i%2 == 0 {
				pnl = usd("2.25")
			}
			_, err := l.RecordTrade(ctx, "alice", domain.TradeOutcome{PnLUSD: pnl, GasUSD: usd("0.1"), At: c.Now()})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	status, err := l.Status(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, n, status.DailyTradeCount)
	assert.True(t, status.DailyLossUSD.Equal(usd("30")), "loss %s", status.DailyLossUSD)
	assert.True(t, status.DailyProfitUSD.Equal(usd("45")), "profit %s", status.DailyProfitUSD)
	assert.True(t, status.DailyGasUsedUSD.Equal(usd("4")), "gas %s", status.DailyGasUsedUSD)
}

func TestNewLedger_RequiresStore(t *testing.T) {
	_, err := app.NewLedger(nil, defaultLimits(), logger.NewNop())
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationError))
}
