package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arbguard/internal/asset"
)

// LegParams is the swap transaction planned for one leg.
type LegParams struct {
	Venue       string
	Router      common.Address
	AmountIn    asset.Amount
	ExpectedOut asset.Amount
	MinOut      asset.Amount
	// Call is the fully formed transaction. Nil when no signer is attached.
	Call *ethereum.CallMsg
}

// Params are the execution parameters validated by the gateway.
type Params struct {
	Owner    common.Address
	Deadline time.Time
	Legs     []LegParams
}

// Approval is an ERC-20 approval that must be mined before the trade.
// Amount is always the exact required amount.
type Approval struct {
	Token   *asset.Asset
	Spender common.Address
	Amount  *big.Int
	Current *big.Int
}

// SimulationResult is the outcome of a pre-flight dry run.
type SimulationResult struct {
	Success      bool
	RevertReason string
	GasUsed      uint64
}
