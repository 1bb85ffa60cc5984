// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/fd1az/arbguard/business/pricing/domain"
	"github.com/fd1az/arbguard/internal/asset"
)

// QuoteSource quotes swaps on one venue of one chain.
type QuoteSource interface {
	// Quote returns the output for swapping in into out. Sources return an
	// error when no quote is available; callers treat that as a discard.
	Quote(ctx context.Context, in asset.Amount, out *asset.Asset) (*domain.Quote, error)
	Venue() string
	ChainID() uint64
}

// ReferencePriceSource supplies market prices in USD.
type ReferencePriceSource interface {
	USDPrice(ctx context.Context, a *asset.Asset) (asset.Price, error)
}
