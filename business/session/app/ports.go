// Package app contains the session manager, the public entry point of the
// pipeline: scans, executions, the scan loop and the risk operations.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	executionApp "github.com/fd1az/arbguard/business/execution/app"
	executionDomain "github.com/fd1az/arbguard/business/execution/domain"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	riskApp "github.com/fd1az/arbguard/business/risk/app"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	safetyDomain "github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/business/session/domain"
)

// Scanner runs one discovery and evaluation pass. *arbitrage/app.Detector
// satisfies it.
type Scanner interface {
	Scan(ctx context.Context) (*arbDomain.ScanResult, error)
}

// Validator is the safety gateway. *safety/app.Gateway satisfies it.
type Validator interface {
	Validate(ctx context.Context, opp *arbDomain.Opportunity, params *safetyDomain.Params) safetyDomain.Verdict
}

// TxPlanner builds bounded transaction parameters. *execution/app.Planner
// satisfies it.
type TxPlanner interface {
	Plan(opp *arbDomain.Opportunity, owner common.Address) (*safetyDomain.Params, error)
}

// Executor signs and submits. *execution/app.Coordinator satisfies it.
type Executor interface {
	Execute(ctx context.Context, req executionApp.Request) *executionDomain.Result
	Owner() common.Address
	LockWallet() func()
}

// RiskLedger is the persistent per-user ledger. *risk/app.Ledger satisfies it.
type RiskLedger interface {
	Status(ctx context.Context, userID string) (*riskDomain.Tracking, error)
	Events(ctx context.Context, userID string) ([]riskDomain.Event, error)
	ResolveEvent(ctx context.Context, userID, eventID, by, note string) (*riskDomain.Event, error)
	KillSwitch(ctx context.Context, userID, by string) (*riskDomain.Event, error)
	OnTrip(h riskApp.TripHandler)
}

// Notifier is an optional fire-and-forget sink. Notify must not block.
type Notifier interface {
	Notify(ctx context.Context, note domain.Notification)
}

// ScannerFactory builds a session's scanner around its price history.
type ScannerFactory func(anomaly *pricingDomain.AnomalyDetector) (Scanner, error)

// ValidatorFactory builds a session's gateway around its price history.
type ValidatorFactory func(anomaly *pricingDomain.AnomalyDetector) (Validator, error)
