package asset

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PricePrecision is the fixed-point precision of Price rates.
const PricePrecision = 18

var pricePrecisionMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(PricePrecision), nil)

// Price is how many whole quote units one whole base unit is worth, observed at a time.
// ETH/USD at 2000.50 is stored as 2000500000000000000000.
type Price struct {
	rate      *big.Int
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// NewPrice creates a price from a decimal rate.
func NewPrice(base, quote *Asset, rate decimal.Decimal, timestamp time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}
	return Price{
		rate:      rate.Shift(PricePrecision).BigInt(),
		base:      base,
		quote:     quote,
		timestamp: timestamp,
	}
}

// USDPrice is shorthand for a price of base in USD.
func USDPrice(base *Asset, rate decimal.Decimal, timestamp time.Time) Price {
	return NewPrice(base, USD, rate, timestamp)
}

func (p Price) Rate() decimal.Decimal {
	if p.rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.rate, -PricePrecision)
}

func (p Price) Base() *Asset {
	return p.base
}

func (p Price) Quote() *Asset {
	return p.quote
}

func (p Price) Timestamp() time.Time {
	return p.timestamp
}

// Pair returns e.g. "WETH/USD".
func (p Price) Pair() string {
	if p.base == nil || p.quote == nil {
		return "???/???"
	}
	return fmt.Sprintf("%s/%s", p.base.Symbol(), p.quote.Symbol())
}

func (p Price) IsZero() bool {
	return p.rate == nil || p.rate.Sign() == 0
}

// Value returns the quote-denominated value of an amount of base, in whole units.
func (p Price) Value(amount Amount) (decimal.Decimal, error) {
	if amount.Asset() == nil {
		return decimal.Zero, ErrNilAsset
	}
	if !amount.Asset().ID().Equals(p.base.ID()) {
		return decimal.Zero, fmt.Errorf("%w: expected %s, got %s",
			ErrAssetMismatch, p.base.Symbol(), amount.Asset().Symbol())
	}
	return amount.ToDecimal().Mul(p.Rate()), nil
}

// Convert converts an amount of base into raw units of quote, rounding down.
func (p Price) Convert(amount Amount) (Amount, error) {
	v, err := p.Value(amount)
	if err != nil {
		return Amount{}, err
	}
	return FromDecimalFloor(p.quote, v), nil
}

func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.Rate().String(), p.Pair())
}

// IsStale reports whether the price is older than maxAge at now.
func (p Price) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.timestamp) > maxAge
}
