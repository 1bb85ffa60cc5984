// Package domain holds execution modes and results.
package domain

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/internal/apperror"
)

// Mode selects whether anything is signed.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeReal       Mode = "real"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSimulation, ModeReal:
		return Mode(s), nil
	}
	return "", apperror.Validation(apperror.CodeInvalidExecutionMode, s)
}

type Status string

const (
	// StatusSimulated: the plan passed every check; nothing was signed.
	StatusSimulated Status = "simulated"
	StatusConfirmed Status = "confirmed"
	// StatusRejected: refused before any transaction was sent.
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusReverted Status = "reverted"
)

// Transaction kinds.
const (
	TxApprove  = "approve"
	TxSwap     = "swap"
	TxTransfer = "transfer"
)

// Transaction is one submitted transaction and its receipt status.
type Transaction struct {
	Kind    string
	Hash    common.Hash
	GasUsed uint64
	// Status is the receipt status; 1 success, 0 reverted.
	Status uint64
}

// Result is the structured outcome of one execution request.
type Result struct {
	OpportunityID string
	UserID        string
	Mode          Mode
	Status        Status
	Code          apperror.Code
	Reason        string
	Transactions  []Transaction
	PnLUSD        decimal.Decimal
	GasUSD        decimal.Decimal
	// Tripped lists breaker events the ledger opened for this trade.
	Tripped    []riskDomain.Event
	Settlement *SettlementResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Rejected is the result of a request refused before it reached the
// coordinator.
func Rejected(userID, opportunityID string, mode Mode, err error, at time.Time) *Result {
	r := &Result{
		OpportunityID: opportunityID,
		UserID:        userID,
		Mode:          mode,
		PnLUSD:        decimal.Zero,
		GasUSD:        decimal.Zero,
		StartedAt:     at,
		FinishedAt:    at,
	}
	r.Fail(StatusRejected, err)
	return r
}

func (r *Result) Succeeded() bool {
	return r.Status == StatusConfirmed || r.Status == StatusSimulated
}

// Fail records err as the outcome.
func (r *Result) Fail(status Status, err error) {
	r.Status = status
	r.Code, r.Reason = describe(err)
}

func describe(err error) (apperror.Code, string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		reason := appErr.Message
		if appErr.Context != "" {
			reason += ": " + appErr.Context
		}
		return appErr.Code, reason
	}
	return apperror.GetCode(err), err.Error()
}

type SettlementStatus string

const (
	SettlementDone    SettlementStatus = "settled"
	SettlementSkipped SettlementStatus = "skipped"
	SettlementFailed  SettlementStatus = "failed"
)

// SettlementResult reports the post-trade transfer. A failed settlement
// never changes the trade's own status.
type SettlementResult struct {
	Status   SettlementStatus
	Code     apperror.Code
	Reason   string
	TxHash   common.Hash
	Amount   string
	ValueUSD decimal.Decimal
	GasUSD   decimal.Decimal
}

func (r *SettlementResult) Fail(status SettlementStatus, err error) {
	r.Status = status
	r.Code, r.Reason = describe(err)
}
