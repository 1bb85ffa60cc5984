// Package domain contains the core domain types for the pricing context.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbguard/internal/asset"
)

// Quote is one venue's answer for swapping AmountIn into the output token.
// It is produced per call and never mutated.
type Quote struct {
	AmountIn     asset.Amount
	AmountOut    asset.Amount
	Venue        string
	ChainID      uint64
	EstimatedGas uint64
	// LiquidityUSD is the pool depth backing the quote. Zero means unknown.
	LiquidityUSD decimal.Decimal
	// Synthetic marks quotes produced by the demo source.
	Synthetic  bool
	ObservedAt time.Time
}

func (q Quote) TokenIn() *asset.Asset  { return q.AmountIn.Asset() }
func (q Quote) TokenOut() *asset.Asset { return q.AmountOut.Asset() }

// Price is the output received per whole unit of input. Zero when the input is zero.
func (q Quote) Price() decimal.Decimal {
	in := q.AmountIn.ToDecimal()
	if in.IsZero() {
		return decimal.Zero
	}
	return q.AmountOut.ToDecimal().Div(in)
}

// PairKey identifies the price series this quote belongs to.
func (q Quote) PairKey() string {
	return PairKey(q.ChainID, q.Venue, q.TokenIn(), q.TokenOut())
}

func (q Quote) String() string {
	return fmt.Sprintf("%s -> %s @%s", q.AmountIn, q.AmountOut, q.Venue)
}

// PairKey renders "chain:venue:IN/OUT", e.g. "1:uniswap-v3-500:WETH/USDC".
func PairKey(chainID uint64, venue string, in, out *asset.Asset) string {
	return fmt.Sprintf("%d:%s:%s/%s", chainID, venue,
		strings.ToUpper(in.Symbol()), strings.ToUpper(out.Symbol()))
}
