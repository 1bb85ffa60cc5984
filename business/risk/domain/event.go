package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/internal/apperror"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Breach reasons.
const (
	ReasonDailyLoss           = "daily_loss_limit"
	ReasonSingleLoss          = "single_loss_limit"
	ReasonConsecutiveFailures = "consecutive_failures"
	ReasonKillSwitch          = "kill_switch"
)

// Breach is a limit crossed by a ledger update.
type Breach struct {
	Reason    string
	Trigger   decimal.Decimal
	Threshold decimal.Decimal
	Severity  Severity
}

// Event is a circuit breaker record. It is appended once and only ever
// changed to add its resolution.
type Event struct {
	ID             string
	UserID         string
	Reason         string
	TriggerValue   decimal.Decimal
	ThresholdValue decimal.Decimal
	Severity       Severity
	CreatedAt      time.Time
	Resolved       bool
	ResolvedAt     time.Time
	ResolvedBy     string
	Note           string
}

func NewEvent(userID string, b Breach, now time.Time) *Event {
	return &Event{
		ID:             uuid.NewString(),
		UserID:         userID,
		Reason:         b.Reason,
		TriggerValue:   b.Trigger,
		ThresholdValue: b.Threshold,
		Severity:       b.Severity,
		CreatedAt:      now,
	}
}

// Resolve records the manual resolution.
func (e *Event) Resolve(by, note string, now time.Time) error {
	if e.Resolved {
		return apperror.Validation(apperror.CodeEventAlreadyResolved, e.ID)
	}
	e.Resolved = true
	e.ResolvedAt = now
	e.ResolvedBy = by
	e.Note = note
	return nil
}
