// Package domain holds the per-user risk counters and circuit breaker events.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Limits are the configured per-user risk bounds. A zero limit is disabled.
type Limits struct {
	DailyLossLimitUSD      decimal.Decimal
	MaxPositionSizeUSD     decimal.Decimal
	MaxSingleLossUSD       decimal.Decimal
	MaxConsecutiveFailures int
	MaxDailyTrades         int
	// AutoPause pauses trading on a breach. When off, breaches are only
	// recorded.
	AutoPause bool
}

// Tracking is the single mutable risk row of one user.
type Tracking struct {
	UserID              string
	DailyLossUSD        decimal.Decimal
	DailyProfitUSD      decimal.Decimal
	DailyGasUsedUSD     decimal.Decimal
	DailyTradeCount     int
	ConsecutiveFailures int
	TradingPaused       bool
	// PeriodStart is the UTC midnight the daily counters belong to.
	PeriodStart time.Time
	UpdatedAt   time.Time

	Limits Limits
}

// NewTracking returns a zeroed row for the day containing now.
func NewTracking(userID string, limits Limits, now time.Time) *Tracking {
	return &Tracking{
		UserID:          userID,
		DailyLossUSD:    decimal.Zero,
		DailyProfitUSD:  decimal.Zero,
		DailyGasUsedUSD: decimal.Zero,
		PeriodStart:     DayStart(now),
		UpdatedAt:       now,
		Limits:          limits,
	}
}

// DayStart truncates t to UTC midnight.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ResetIfNewDay zeroes the daily counters once now has crossed into a
// later UTC day and reports whether it did. Repeating it within the same
// day changes nothing. Consecutive failures and the pause flag are not
// daily counters and survive the reset.
func (t *Tracking) ResetIfNewDay(now time.Time) bool {
	day := DayStart(now)
	if !day.After(t.PeriodStart) {
		return false
	}
	t.DailyLossUSD = decimal.Zero
	t.DailyProfitUSD = decimal.Zero
	t.DailyGasUsedUSD = decimal.Zero
	t.DailyTradeCount = 0
	t.PeriodStart = day
	t.UpdatedAt = now
	return true
}

// DailyLossUtilization is DailyLossUSD as a percentage of the daily limit.
func (t *Tracking) DailyLossUtilization() decimal.Decimal {
	if !t.Limits.DailyLossLimitUSD.IsPositive() {
		return decimal.Zero
	}
	return t.DailyLossUSD.Div(t.Limits.DailyLossLimitUSD).Mul(hundred)
}

// DailyTradeUtilization is DailyTradeCount as a percentage of the trade cap.
func (t *Tracking) DailyTradeUtilization() decimal.Decimal {
	if t.Limits.MaxDailyTrades <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(t.DailyTradeCount)).
		Div(decimal.NewFromInt(int64(t.Limits.MaxDailyTrades))).Mul(hundred)
}

// TradeOutcome is the realized result of one executed trade.
type TradeOutcome struct {
	// PnLUSD is net of gas; negative is a loss.
	PnLUSD decimal.Decimal
	GasUSD decimal.Decimal
	// Failed is set for reverted or otherwise failed executions.
	Failed bool
	At     time.Time
}

// Loss returns the loss of the outcome as a positive value, or zero.
func (o TradeOutcome) Loss() decimal.Decimal {
	if o.PnLUSD.IsNegative() {
		return o.PnLUSD.Neg()
	}
	return decimal.Zero
}

// Apply adds the outcome to the counters and returns the limits it
// breaches. The daily loss limit is only checked when the trade added a
// loss, so profitable trades never re-trip it.
func (t *Tracking) Apply(o TradeOutcome) []Breach {
	t.DailyTradeCount++
	t.DailyGasUsedUSD = t.DailyGasUsedUSD.Add(o.GasUSD)
	loss := o.Loss()
	if loss.IsPositive() {
		t.DailyLossUSD = t.DailyLossUSD.Add(loss)
	} else {
		t.DailyProfitUSD = t.DailyProfitUSD.Add(o.PnLUSD)
	}
	if o.Failed {
		t.ConsecutiveFailures++
	} else {
		t.ConsecutiveFailures = 0
	}
	t.UpdatedAt = o.At

	var breaches []Breach
	lim := t.Limits
	if loss.IsPositive() && lim.DailyLossLimitUSD.IsPositive() && t.DailyLossUSD.GreaterThanOrEqual(lim.DailyLossLimitUSD) {
		breaches = append(breaches, Breach{
			Reason:    ReasonDailyLoss,
			Trigger:   t.DailyLossUSD,
			Threshold: lim.DailyLossLimitUSD,
			Severity:  SeverityCritical,
		})
	}
	if lim.MaxSingleLossUSD.IsPositive() && loss.GreaterThanOrEqual(lim.MaxSingleLossUSD) {
		breaches = append(breaches, Breach{
			Reason:    ReasonSingleLoss,
			Trigger:   loss,
			Threshold: lim.MaxSingleLossUSD,
			Severity:  SeverityCritical,
		})
	}
	if lim.MaxConsecutiveFailures > 0 && t.ConsecutiveFailures > lim.MaxConsecutiveFailures {
		breaches = append(breaches, Breach{
			Reason:    ReasonConsecutiveFailures,
			Trigger:   decimal.NewFromInt(int64(t.ConsecutiveFailures)),
			Threshold: decimal.NewFromInt(int64(lim.MaxConsecutiveFailures)),
			Severity:  SeverityWarning,
		})
	}
	return breaches
}
