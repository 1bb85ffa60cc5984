package domain

import (
	"time"

	"github.com/fd1az/arbguard/internal/apperror"
)

// Guard names.
const (
	GuardInput       = "input"
	GuardSpread      = "spread"
	GuardPriceImpact = "price_impact"
	GuardAnomaly     = "anomaly"
	GuardTxParams    = "tx_params"
	GuardApproval    = "approval"
	GuardSimulation  = "simulation"
)

// Veto is one guard's rejection.
type Veto struct {
	Guard  string
	Code   apperror.Code
	Reason string
}

// Verdict is the gateway's time-bound decision on one opportunity.
type Verdict struct {
	OpportunityID string
	Safe          bool
	// Guard, Code and Reason describe the first veto in guard order.
	Guard  string
	Code   apperror.Code
	Reason string
	Vetoes []Veto
	// Approvals must be mined before the trade.
	Approvals []Approval
	// FailedOpen lists guards that could not decide and allowed the trade.
	FailedOpen []string
	CheckedAt  time.Time
}

// NewVerdict folds the vetoes, kept in guard order, into a verdict.
func NewVerdict(oppID string, vetoes []Veto, checkedAt time.Time) Verdict {
	v := Verdict{
		OpportunityID: oppID,
		Safe:          len(vetoes) == 0,
		Vetoes:        vetoes,
		CheckedAt:     checkedAt,
	}
	if !v.Safe {
		v.Guard = vetoes[0].Guard
		v.Code = vetoes[0].Code
		v.Reason = vetoes[0].Reason
	}
	return v
}

// IsFresh reports whether the verdict is younger than ttl.
func (v Verdict) IsFresh(now time.Time, ttl time.Duration) bool {
	age := now.Sub(v.CheckedAt)
	return age >= 0 && age < ttl
}

// Confirm returns nil when the verdict still allows opportunity oppID at now.
func (v Verdict) Confirm(oppID string, now time.Time, ttl time.Duration) error {
	if v.OpportunityID != oppID {
		return apperror.Validation(apperror.CodeVerdictUnsafe, "verdict belongs to opportunity "+v.OpportunityID)
	}
	if !v.Safe {
		return apperror.New(apperror.CodeVerdictUnsafe, apperror.WithContext(v.Guard+": "+v.Reason))
	}
	if !v.IsFresh(now, ttl) {
		return apperror.New(apperror.CodeVerdictStale,
			apperror.WithContextf("checked %s ago, ttl %s", now.Sub(v.CheckedAt).Round(time.Millisecond), ttl))
	}
	return nil
}
