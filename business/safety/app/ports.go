// Package app contains the safety gateway and its guards.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	arbDomain "github.com/fd1az/arbguard/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/business/safety/domain"
	"github.com/fd1az/arbguard/internal/asset"
)

// Guard is one independent check of the gateway. A nil error means safe;
// any other error is a veto carrying its reason.
type Guard interface {
	Name() string
	Check(ctx context.Context, opp *arbDomain.Opportunity, params *domain.Params) error
}

// QuoteProvider re-quotes a leg. *pricing/app.QuoteService satisfies it.
type QuoteProvider interface {
	Quote(ctx context.Context, venue string, in asset.Amount, out *asset.Asset) (*pricingDomain.Quote, error)
}

// AllowanceReader reads ERC-20 allowances. *ethereum.ChainClient satisfies it.
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Simulator dry-runs a transaction. A reverted transaction is a result
// with Success false, not an error.
type Simulator interface {
	Simulate(ctx context.Context, call ethereum.CallMsg) (*domain.SimulationResult, error)
}
