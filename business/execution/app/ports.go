// Package app contains the execution coordinator, the transaction planner
// and the settlement transfer.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	riskApp "github.com/fd1az/arbguard/business/risk/app"
	riskDomain "github.com/fd1az/arbguard/business/risk/domain"
	"github.com/fd1az/arbguard/internal/asset"
)

// Signer is the signing identity. Implementations: signer.KeySigner and
// signer.HardwareSigner.
type Signer interface {
	Sign(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	Address() common.Address
	IsAvailable(ctx context.Context) bool
}

// Chain submits transactions and reads balances. *ethereum.ChainClient
// satisfies it.
type Chain interface {
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	Send(ctx context.Context, tx *types.Transaction) error
	WaitReceipt(ctx context.Context, hash common.Hash, poll, timeout time.Duration) (*types.Receipt, error)
	TokenBalance(ctx context.Context, a *asset.Asset, owner common.Address) (asset.Amount, error)
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// RiskLedger is the part of the ledger execution consults. *risk/app.Ledger
// satisfies it.
type RiskLedger interface {
	CheckPaused(ctx context.Context, userID string) error
	PreCheck(ctx context.Context, userID string, positionUSD decimal.Decimal) error
	RecordTrade(ctx context.Context, userID string, outcome riskDomain.TradeOutcome) (*riskApp.RecordResult, error)
}
